// Package albums exposes the album hierarchy API: tree listing filtered by
// visibility, recursive photo counts, CRUD and batch reordering.
package albums

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/photariumd/access"
	"github.com/photarium/photarium/src/photariumd/api/common"
	coreauth "github.com/photarium/photarium/src/photariumd/auth"
	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/gallery"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the albums package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Handler handles album HTTP requests
type Handler struct {
	albumRepo  *db.AlbumRepository
	photoRepo  *db.PhotoRepository
	counter    *gallery.Counter
	jwtService *coreauth.JWTService
}

// Config contains configuration options for the Handler
type Config struct {
	AlbumRepo  *db.AlbumRepository
	PhotoRepo  *db.PhotoRepository
	JWTService *coreauth.JWTService
}

// NewHandler creates a new albums handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		albumRepo:  cfg.AlbumRepo,
		photoRepo:  cfg.PhotoRepo,
		counter:    gallery.NewCounter(cfg.AlbumRepo, cfg.PhotoRepo),
		jwtService: cfg.JWTService,
	}
}

// AlbumRequest carries album creation and update payloads.
type AlbumRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	ParentAlbumID string   `json:"parentAlbumId,omitempty"`
	SortOrder     int      `json:"sortOrder"`
	CoverPhotoID  string   `json:"coverPhotoId,omitempty"`
	IsPublic      bool     `json:"isPublic"`
	AllowedGroups []string `json:"allowedGroups,omitempty"`
	AllowedUsers  []string `json:"allowedUsers,omitempty"`
}

// CountResponse reports the recursive photo count of an album subtree.
type CountResponse struct {
	AlbumID string `json:"albumId"`
	Count   int    `json:"count"`
}

// ReorderRequest carries a batch of sort-order updates.
type ReorderRequest struct {
	Items []db.ReorderItem `json:"items"`
}

// ReorderResponse reports entries that could not be applied.
type ReorderResponse struct {
	Applied  int                 `json:"applied"`
	Failures []db.ReorderFailure `json:"failures,omitempty"`
}

// principal resolves the optional identity attached to the request.
func (h *Handler) principal(c *gin.Context) *access.Principal {
	if claims := common.GetClaimsFromContext(c); claims != nil {
		return claims.Principal()
	}
	return common.GetTokenClaimsFromRequest(c, h.jwtService).Principal()
}

// visibleAlbum loads an album and enforces view access. Denials surface as
// not-found so probing cannot distinguish hidden albums from absent ones.
func (h *Handler) visibleAlbum(c *gin.Context, id string) (*gallery.Album, bool) {
	album, err := h.albumRepo.GetByID(id)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return nil, false
	}

	if !access.CanView(h.principal(c), album.Visibility) {
		c.JSON(http.StatusNotFound, errors.ErrAlbumNotFound.ToResponse())
		return nil, false
	}
	return album, true
}

// HandleTree returns the album forest visible to the current user
// @Summary      Get the album tree
// @Tags         Albums
// @Produce      json
// @Success      200  {array}   gallery.AlbumNode
// @Failure      500  {object}  common.ErrorResponse
// @Router       /v1/albums/tree [get]
func (h *Handler) HandleTree(c *gin.Context) {
	albums, err := h.albumRepo.List()
	if err != nil {
		common.InternalError(c, err.Error())
		return
	}

	roots := gallery.FilterTree(gallery.BuildTree(albums), h.principal(c))
	if roots == nil {
		roots = []*gallery.AlbumNode{}
	}
	c.JSON(http.StatusOK, roots)
}

// HandleGet returns a single album
// @Summary      Get an album
// @Tags         Albums
// @Produce      json
// @Param        id   path      string  true  "Album ID"
// @Success      200  {object}  gallery.Album
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/albums/{id} [get]
func (h *Handler) HandleGet(c *gin.Context) {
	album, ok := h.visibleAlbum(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, album)
}

// HandleCount returns the recursive photo count of an album subtree
// @Summary      Count photos in an album subtree
// @Tags         Albums
// @Produce      json
// @Param        id   path      string  true  "Album ID"
// @Success      200  {object}  CountResponse
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/albums/{id}/count [get]
func (h *Handler) HandleCount(c *gin.Context) {
	album, ok := h.visibleAlbum(c, c.Param("id"))
	if !ok {
		return
	}

	count, err := h.counter.Count(c.Request.Context(), album.ID)
	if err != nil {
		common.InternalError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, CountResponse{AlbumID: album.ID, Count: count})
}

// HandlePhotos returns the photos of an album
// @Summary      List album photos
// @Tags         Albums
// @Produce      json
// @Param        id   path      string  true  "Album ID"
// @Success      200  {array}   gallery.Photo
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/albums/{id}/photos [get]
func (h *Handler) HandlePhotos(c *gin.Context) {
	album, ok := h.visibleAlbum(c, c.Param("id"))
	if !ok {
		return
	}

	photos, err := h.photoRepo.ListByAlbum(album.ID)
	if err != nil {
		common.InternalError(c, err.Error())
		return
	}

	// Unpublished photos stay visible to the accounts that manage them.
	p := h.principal(c)
	published := make([]*gallery.Photo, 0, len(photos))
	for _, photo := range photos {
		if photo.IsPublished || (p != nil && p.Role != access.RoleGuest) {
			published = append(published, photo)
		}
	}
	c.JSON(http.StatusOK, published)
}

// HandleCreate creates a new album
// @Summary      Create an album
// @Tags         Albums
// @Accept       json
// @Produce      json
// @Param        request  body      AlbumRequest  true  "Album payload"
// @Success      201      {object}  gallery.Album
// @Failure      400      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/albums [post]
func (h *Handler) HandleCreate(c *gin.Context) {
	var req AlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidAlbumData.WithMessage("Album name is required").ToResponse())
		return
	}

	album := &gallery.Album{
		Name:          req.Name,
		Description:   req.Description,
		ParentAlbumID: req.ParentAlbumID,
		SortOrder:     req.SortOrder,
		CoverPhotoID:  req.CoverPhotoID,
		Visibility: access.Visibility{
			IsPublic:      req.IsPublic,
			AllowedGroups: req.AllowedGroups,
			AllowedUsers:  req.AllowedUsers,
		},
	}
	if err := h.albumRepo.Create(album); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "album.create", UserID: claims.UserID, UserName: claims.UserName, Resource: "album:" + album.ID, Success: true})
	}

	c.JSON(http.StatusCreated, album)
}

// HandleUpdate updates an existing album
// @Summary      Update an album
// @Tags         Albums
// @Accept       json
// @Produce      json
// @Param        id       path      string        true  "Album ID"
// @Param        request  body      AlbumRequest  true  "Album payload"
// @Success      200      {object}  gallery.Album
// @Failure      404      {object}  common.ErrorResponse
// @Failure      409      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/albums/{id} [put]
func (h *Handler) HandleUpdate(c *gin.Context) {
	album, err := h.albumRepo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	var req AlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidAlbumData.WithMessage("Album name is required").ToResponse())
		return
	}

	album.Name = req.Name
	album.Description = req.Description
	album.ParentAlbumID = req.ParentAlbumID
	album.SortOrder = req.SortOrder
	album.CoverPhotoID = req.CoverPhotoID
	album.Visibility = access.Visibility{
		IsPublic:      req.IsPublic,
		AllowedGroups: req.AllowedGroups,
		AllowedUsers:  req.AllowedUsers,
	}

	if err := h.albumRepo.Update(album); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "album.update", UserID: claims.UserID, UserName: claims.UserName, Resource: "album:" + album.ID, Success: true})
	}

	c.JSON(http.StatusOK, album)
}

// HandleDelete deletes an album. Child albums are detached, photos are
// removed by the schema cascade.
// @Summary      Delete an album
// @Tags         Albums
// @Produce      json
// @Param        id   path  string  true  "Album ID"
// @Success      204  "No Content"
// @Failure      404  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/albums/{id} [delete]
func (h *Handler) HandleDelete(c *gin.Context) {
	id := c.Param("id")
	if err := h.albumRepo.Delete(id); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "album.delete", UserID: claims.UserID, UserName: claims.UserName, Resource: "album:" + id, Success: true})
	}

	c.Status(http.StatusNoContent)
}

// HandleReorder applies a batch of sort-order updates
// @Summary      Reorder albums
// @Tags         Albums
// @Accept       json
// @Produce      json
// @Param        request  body      ReorderRequest  true  "Reorder batch"
// @Success      200      {object}  ReorderResponse
// @Failure      400      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/albums/reorder [post]
func (h *Handler) HandleReorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}
	if len(req.Items) == 0 {
		common.BadRequest(c, "items must not be empty")
		return
	}

	failures, err := h.albumRepo.ReorderBatch(req.Items)
	if err != nil {
		common.InternalError(c, err.Error())
		return
	}

	if len(failures) > 0 {
		log.Warn("Album reorder batch had failures", "failed", len(failures), "total", len(req.Items))
	}

	c.JSON(http.StatusOK, ReorderResponse{
		Applied:  len(req.Items) - len(failures),
		Failures: failures,
	})
}
