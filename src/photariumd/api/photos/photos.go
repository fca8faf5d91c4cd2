// Package photos exposes the photo API: multipart upload through a storage
// provider, serving URLs, and deletion that cleans up the stored object.
package photos

import (
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/photariumd/access"
	"github.com/photarium/photarium/src/photariumd/api/common"
	coreauth "github.com/photarium/photarium/src/photariumd/auth"
	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/gallery"
	"github.com/photarium/photarium/src/photariumd/storage"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the photos package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Handler handles photo HTTP requests
type Handler struct {
	photoRepo  *db.PhotoRepository
	albumRepo  *db.AlbumRepository
	manager    *storage.Manager
	jwtService *coreauth.JWTService
}

// Config contains configuration options for the Handler
type Config struct {
	PhotoRepo  *db.PhotoRepository
	AlbumRepo  *db.AlbumRepository
	Manager    *storage.Manager
	JWTService *coreauth.JWTService
}

// NewHandler creates a new photos handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		photoRepo:  cfg.PhotoRepo,
		albumRepo:  cfg.AlbumRepo,
		manager:    cfg.Manager,
		jwtService: cfg.JWTService,
	}
}

// URLResponse carries a serving URL for a stored photo.
type URLResponse struct {
	PhotoID string `json:"photoId"`
	URL     string `json:"url"`
}

func (h *Handler) principal(c *gin.Context) *access.Principal {
	if claims := common.GetClaimsFromContext(c); claims != nil {
		return claims.Principal()
	}
	return common.GetTokenClaimsFromRequest(c, h.jwtService).Principal()
}

// visiblePhoto loads a photo and enforces the owning album's visibility.
func (h *Handler) visiblePhoto(c *gin.Context, id string) (*gallery.Photo, bool) {
	photo, err := h.photoRepo.GetByID(id)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return nil, false
	}

	album, err := h.albumRepo.GetByID(photo.AlbumID)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return nil, false
	}
	if !access.CanView(h.principal(c), album.Visibility) {
		c.JSON(http.StatusNotFound, errors.ErrPhotoNotFound.ToResponse())
		return nil, false
	}
	return photo, true
}

// HandleUpload stores an uploaded file through a provider and records the
// photo in its album
// @Summary      Upload a photo
// @Tags         Photos
// @Accept       multipart/form-data
// @Produce      json
// @Param        id        path      string  true   "Album ID"
// @Param        file      formData  file    true   "Photo content"
// @Param        provider  formData  string  true   "Storage provider id"
// @Param        title     formData  string  false  "Photo title"
// @Param        published formData  bool    false  "Publish immediately (default true)"
// @Success      201       {object}  gallery.Photo
// @Failure      400       {object}  common.ErrorResponse
// @Failure      403       {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/albums/{id}/photos [post]
func (h *Handler) HandleUpload(c *gin.Context) {
	claims := common.GetClaimsFromContext(c)
	if claims == nil {
		common.Unauthorized(c, "Authentication required")
		return
	}

	album, err := h.albumRepo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	providerID := storage.ID(c.PostForm("provider"))
	if !storage.Known(providerID) {
		c.JSON(http.StatusBadRequest, errors.ErrProviderNotFound.WithMessage("Unknown provider id").ToResponse())
		return
	}

	if !access.CanUpload(claims.Principal(), string(providerID)) {
		c.JSON(http.StatusForbidden, errors.ErrProviderNotAllowed.ToResponse())
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.BadRequest(c, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		common.BadRequest(c, "failed to read uploaded file")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	key := path.Join(album.ID, path.Base(fileHeader.Filename))

	ref, err := h.manager.Upload(c.Request.Context(), providerID, key, file, fileHeader.Size, contentType)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	sortOrder := 0
	if s := c.PostForm("sortOrder"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			sortOrder = parsed
		}
	}
	published := true
	if s := c.PostForm("published"); s != "" {
		if parsed, err := strconv.ParseBool(s); err == nil {
			published = parsed
		}
	}

	photo := &gallery.Photo{
		AlbumID:     album.ID,
		Title:       c.PostForm("title"),
		Provider:    string(providerID),
		Path:        ref.Path,
		ContentType: contentType,
		Size:        ref.Size,
		SortOrder:   sortOrder,
		IsPublished: published,
	}
	if err := h.photoRepo.Create(photo); err != nil {
		// The object is stored but the record failed; remove the orphan
		if delErr := h.manager.DeleteFile(c.Request.Context(), providerID, ref.Path); delErr != nil {
			log.Error("Failed to clean up stored object after record failure", "provider", providerID, "path", ref.Path, "error", delErr)
		}
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	common.AuditLog(c, common.AuditEvent{Action: "photo.upload", UserID: claims.UserID, UserName: claims.UserName, Resource: "photo:" + photo.ID, Detail: string(providerID) + ":" + ref.Path, Success: true})

	c.JSON(http.StatusCreated, photo)
}

// HandleGet returns photo metadata
// @Summary      Get a photo
// @Tags         Photos
// @Produce      json
// @Param        id   path      string  true  "Photo ID"
// @Success      200  {object}  gallery.Photo
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/photos/{id} [get]
func (h *Handler) HandleGet(c *gin.Context) {
	photo, ok := h.visiblePhoto(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, photo)
}

// HandleURL returns a serving URL for a photo
// @Summary      Get a photo serving URL
// @Tags         Photos
// @Produce      json
// @Param        id   path      string  true  "Photo ID"
// @Success      200  {object}  URLResponse
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/photos/{id}/url [get]
func (h *Handler) HandleURL(c *gin.Context) {
	photo, ok := h.visiblePhoto(c, c.Param("id"))
	if !ok {
		return
	}

	url, err := h.manager.PhotoURL(c.Request.Context(), storage.ID(photo.Provider), photo.Path)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	c.JSON(http.StatusOK, URLResponse{PhotoID: photo.ID, URL: url})
}

// HandleUpdate updates photo metadata. Provider and path are immutable.
// @Summary      Update a photo
// @Tags         Photos
// @Accept       json
// @Produce      json
// @Param        id       path      string         true  "Photo ID"
// @Param        request  body      gallery.Photo  true  "Photo payload"
// @Success      200      {object}  gallery.Photo
// @Failure      404      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/photos/{id} [put]
func (h *Handler) HandleUpdate(c *gin.Context) {
	photo, err := h.photoRepo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	var req struct {
		AlbumID     string `json:"albumId,omitempty"`
		Title       string `json:"title,omitempty"`
		SortOrder   *int   `json:"sortOrder,omitempty"`
		IsPublished *bool  `json:"isPublished,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}

	if req.AlbumID != "" {
		photo.AlbumID = req.AlbumID
	}
	if req.Title != "" {
		photo.Title = req.Title
	}
	if req.SortOrder != nil {
		photo.SortOrder = *req.SortOrder
	}
	if req.IsPublished != nil {
		photo.IsPublished = *req.IsPublished
	}

	if err := h.photoRepo.Update(photo); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	c.JSON(http.StatusOK, photo)
}

// HandleDelete removes a photo and its stored object
// @Summary      Delete a photo
// @Tags         Photos
// @Produce      json
// @Param        id   path  string  true  "Photo ID"
// @Success      204  "No Content"
// @Failure      404  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/photos/{id} [delete]
func (h *Handler) HandleDelete(c *gin.Context) {
	photo, err := h.photoRepo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	// Best effort: a failed object delete never strands the record
	if err := h.manager.DeleteFile(c.Request.Context(), storage.ID(photo.Provider), photo.Path); err != nil {
		log.Warn("Failed to delete stored object", "provider", photo.Provider, "path", photo.Path, "error", err)
	}

	if err := h.photoRepo.Delete(photo.ID); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "photo.delete", UserID: claims.UserID, UserName: claims.UserName, Resource: "photo:" + photo.ID, Success: true})
	}

	c.Status(http.StatusNoContent)
}
