// Package files serves objects stored by the local provider. Remote
// providers hand out their own expiring URLs; local content flows through
// the daemon, so every request resolves the owning photo and passes its
// album's visibility check before any bytes leave the disk.
package files

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/photariumd/access"
	"github.com/photarium/photarium/src/photariumd/api/common"
	coreauth "github.com/photarium/photarium/src/photariumd/auth"
	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/storage"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the files package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Handler handles file serving requests
type Handler struct {
	manager    *storage.Manager
	photoRepo  *db.PhotoRepository
	albumRepo  *db.AlbumRepository
	jwtService *coreauth.JWTService
}

// Config contains configuration options for the Handler
type Config struct {
	Manager    *storage.Manager
	PhotoRepo  *db.PhotoRepository
	AlbumRepo  *db.AlbumRepository
	JWTService *coreauth.JWTService
}

// NewHandler creates a new files handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		manager:    cfg.Manager,
		photoRepo:  cfg.PhotoRepo,
		albumRepo:  cfg.AlbumRepo,
		jwtService: cfg.JWTService,
	}
}

// HandleGetLocal streams a file stored by the local provider. The route is
// not behind auth middleware so that plain <img> tags work; identity comes
// from the Authorization header or a token query parameter, and everything
// the caller may not see reads as not-found.
// @Summary      Serve a local file
// @Tags         Files
// @Produce      octet-stream
// @Param        path   path      string  true   "Object path"
// @Param        token  query     string  false  "Access token"
// @Success      200    "File content"
// @Failure      403    {object}  common.ErrorResponse
// @Failure      404    {object}  common.ErrorResponse
// @Router       /v1/files/local/{path} [get]
func (h *Handler) HandleGetLocal(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("path"), "/")
	if key == "" {
		c.JSON(http.StatusNotFound, errors.ErrStorageNotFound.ToResponse())
		return
	}

	photo, err := h.photoRepo.GetByStoredPath(string(storage.Local), key)
	if err != nil {
		c.JSON(http.StatusNotFound, errors.ErrStorageNotFound.ToResponse())
		return
	}

	album, err := h.albumRepo.GetByID(photo.AlbumID)
	if err != nil {
		c.JSON(http.StatusNotFound, errors.ErrStorageNotFound.ToResponse())
		return
	}

	p := common.GetTokenClaimsFromRequest(c, h.jwtService).Principal()
	if !access.CanView(p, album.Visibility) {
		log.Warn("Rejected file request", "path", key, "client_ip", c.ClientIP())
		c.JSON(http.StatusNotFound, errors.ErrStorageNotFound.ToResponse())
		return
	}
	if !photo.IsPublished && (p == nil || p.Role == access.RoleGuest) {
		c.JSON(http.StatusNotFound, errors.ErrStorageNotFound.ToResponse())
		return
	}

	rc, info, err := h.manager.GetFile(c.Request.Context(), storage.Local, key)
	if err != nil {
		if errors.IsAccessDenied(err) {
			log.Warn("Rejected file request", "path", key, "client_ip", c.ClientIP())
		}
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	extraHeaders := map[string]string{}
	if info.ETag != "" {
		extraHeaders["ETag"] = info.ETag
	}

	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, extraHeaders)
}
