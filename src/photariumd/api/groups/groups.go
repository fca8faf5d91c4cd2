// Package groups exposes the sharing group management API.
package groups

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/api/common"
	"github.com/photarium/photarium/src/photariumd/db"
)

// Handler handles group HTTP requests
type Handler struct {
	groupRepo *db.GroupRepository
}

// Config contains configuration options for the Handler
type Config struct {
	GroupRepo *db.GroupRepository
}

// NewHandler creates a new groups handler
func NewHandler(cfg Config) *Handler {
	return &Handler{groupRepo: cfg.GroupRepo}
}

// GroupRequest carries group creation and update payloads.
type GroupRequest struct {
	Alias       string `json:"alias"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HandleList returns all sharing groups
// @Summary      List groups
// @Tags         Groups
// @Produce      json
// @Success      200  {array}   db.GroupEntry
// @Security     BearerAuth
// @Router       /v1/groups [get]
func (h *Handler) HandleList(c *gin.Context) {
	groups, err := h.groupRepo.List()
	if err != nil {
		common.InternalError(c, err.Error())
		return
	}
	if groups == nil {
		groups = []db.GroupEntry{}
	}
	c.JSON(http.StatusOK, groups)
}

// HandleGet returns a group by alias
// @Summary      Get a group
// @Tags         Groups
// @Produce      json
// @Param        alias  path      string  true  "Group alias"
// @Success      200    {object}  db.GroupEntry
// @Failure      404    {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/groups/{alias} [get]
func (h *Handler) HandleGet(c *gin.Context) {
	group, err := h.groupRepo.GetByAlias(c.Param("alias"))
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}
	c.JSON(http.StatusOK, group)
}

// HandleCreate creates a new sharing group
// @Summary      Create a group
// @Tags         Groups
// @Accept       json
// @Produce      json
// @Param        request  body      GroupRequest  true  "Group payload"
// @Success      201      {object}  db.GroupEntry
// @Failure      409      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/groups [post]
func (h *Handler) HandleCreate(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}
	if req.Alias == "" || req.Name == "" {
		common.BadRequest(c, "alias and name are required")
		return
	}

	entry := &db.GroupEntry{
		Alias:       req.Alias,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.groupRepo.Create(entry); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "group.create", UserID: claims.UserID, UserName: claims.UserName, Resource: "group:" + entry.Alias, Success: true})
	}

	c.JSON(http.StatusCreated, entry)
}

// HandleUpdate updates a group. The alias is immutable.
// @Summary      Update a group
// @Tags         Groups
// @Accept       json
// @Produce      json
// @Param        alias    path      string        true  "Group alias"
// @Param        request  body      GroupRequest  true  "Group payload"
// @Success      200      {object}  db.GroupEntry
// @Failure      404      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/groups/{alias} [put]
func (h *Handler) HandleUpdate(c *gin.Context) {
	entry, err := h.groupRepo.GetByAlias(c.Param("alias"))
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}

	if req.Name != "" {
		entry.Name = req.Name
	}
	entry.Description = req.Description

	if err := h.groupRepo.Update(entry); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// HandleDelete removes a group
// @Summary      Delete a group
// @Tags         Groups
// @Produce      json
// @Param        alias  path  string  true  "Group alias"
// @Success      204    "No Content"
// @Failure      404    {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/groups/{alias} [delete]
func (h *Handler) HandleDelete(c *gin.Context) {
	alias := c.Param("alias")
	if err := h.groupRepo.Delete(alias); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "group.delete", UserID: claims.UserID, UserName: claims.UserName, Resource: "group:" + alias, Success: true})
	}

	c.Status(http.StatusNoContent)
}
