package api

import (
	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/common/version"
	apialbums "github.com/photarium/photarium/src/photariumd/api/albums"
	apiauth "github.com/photarium/photarium/src/photariumd/api/auth"
	"github.com/photarium/photarium/src/photariumd/api/base"
	"github.com/photarium/photarium/src/photariumd/api/common"
	apifiles "github.com/photarium/photarium/src/photariumd/api/files"
	apigroups "github.com/photarium/photarium/src/photariumd/api/groups"
	apiphotos "github.com/photarium/photarium/src/photariumd/api/photos"
	apiproviders "github.com/photarium/photarium/src/photariumd/api/providers"
)

// SetLogger sets the logger for the api package and subpackages
func SetLogger(l *logs.Logger) {
	apiauth.SetLogger(l)
	apiproviders.SetLogger(l)
	apialbums.SetLogger(l)
	apiphotos.SetLogger(l)
	apifiles.SetLogger(l)
	common.SetAuditLogger(l)
}

// SetVersionInfo sets the version info for the api package and subpackages
func SetVersionInfo(v *version.Info) {
	base.SetVersionInfo(v)
}

// New creates a new API instance with all subpackage handlers
func New(cfg Config) *API {
	return &API{
		Base: base.NewHandler(),

		Auth: apiauth.NewHandler(apiauth.Config{
			UserManager: cfg.UserManager,
			JWTService:  cfg.JWTService,
		}),

		Providers: apiproviders.NewHandler(apiproviders.Config{
			ConfigRepo: cfg.ConfigRepo,
			Manager:    cfg.Manager,
		}),

		Albums: apialbums.NewHandler(apialbums.Config{
			AlbumRepo:  cfg.AlbumRepo,
			PhotoRepo:  cfg.PhotoRepo,
			JWTService: cfg.JWTService,
		}),

		Photos: apiphotos.NewHandler(apiphotos.Config{
			PhotoRepo:  cfg.PhotoRepo,
			AlbumRepo:  cfg.AlbumRepo,
			Manager:    cfg.Manager,
			JWTService: cfg.JWTService,
		}),

		Files: apifiles.NewHandler(apifiles.Config{
			Manager:    cfg.Manager,
			PhotoRepo:  cfg.PhotoRepo,
			AlbumRepo:  cfg.AlbumRepo,
			JWTService: cfg.JWTService,
		}),

		Groups: apigroups.NewHandler(apigroups.Config{
			GroupRepo: cfg.GroupRepo,
		}),

		jwtService:  cfg.JWTService,
		rateLimiter: NewRateLimiter(cfg.RateLimit),
	}
}

// Stop releases background resources held by the API.
func (a *API) Stop() {
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
}
