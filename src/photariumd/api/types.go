package api

import (
	apialbums "github.com/photarium/photarium/src/photariumd/api/albums"
	apiauth "github.com/photarium/photarium/src/photariumd/api/auth"
	"github.com/photarium/photarium/src/photariumd/api/base"
	"github.com/photarium/photarium/src/photariumd/api/common"
	apifiles "github.com/photarium/photarium/src/photariumd/api/files"
	apigroups "github.com/photarium/photarium/src/photariumd/api/groups"
	apiphotos "github.com/photarium/photarium/src/photariumd/api/photos"
	apiproviders "github.com/photarium/photarium/src/photariumd/api/providers"
	"github.com/photarium/photarium/src/photariumd/auth"
	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/storage"
)

// ErrorResponse is an alias to common.ErrorResponse for backwards compatibility
type ErrorResponse = common.ErrorResponse

// API holds all handler instances and dependencies
type API struct {
	// Subpackage handlers
	Base      *base.Handler
	Auth      *apiauth.Handler
	Providers *apiproviders.Handler
	Albums    *apialbums.Handler
	Photos    *apiphotos.Handler
	Files     *apifiles.Handler
	Groups    *apigroups.Handler

	// Direct dependencies for middleware
	jwtService  *auth.JWTService
	rateLimiter *RateLimiter
}

// Config contains API configuration options
type Config struct {
	AlbumRepo   *db.AlbumRepository
	PhotoRepo   *db.PhotoRepository
	GroupRepo   *db.GroupRepository
	ConfigRepo  *db.ProviderConfigRepository
	Manager     *storage.Manager
	UserManager *auth.UserManager
	JWTService  *auth.JWTService
	RateLimit   RateLimitConfig
}
