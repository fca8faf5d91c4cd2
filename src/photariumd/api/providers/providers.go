// Package providers exposes the storage provider configuration and
// diagnostics API. Secret fields never leave the server: read responses
// redact them and the test endpoint reports outcomes only.
package providers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/photariumd/api/common"
	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/storage"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the providers package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Handler handles provider configuration HTTP requests
type Handler struct {
	configRepo *db.ProviderConfigRepository
	manager    *storage.Manager
}

// Config contains configuration options for the Handler
type Config struct {
	ConfigRepo *db.ProviderConfigRepository
	Manager    *storage.Manager
}

// NewHandler creates a new providers handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		configRepo: cfg.ConfigRepo,
		manager:    cfg.Manager,
	}
}

// UpsertRequest carries a provider configuration payload.
type UpsertRequest struct {
	Name    string          `json:"name,omitempty"`
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config"`
}

// TestResponse reports a connectivity check outcome without leaking
// backend-native error detail beyond the normalized taxonomy.
type TestResponse struct {
	Provider storage.ID `json:"provider"`
	Success  bool       `json:"success"`
	Error    string     `json:"error,omitempty"`
}

func providerID(c *gin.Context) (storage.ID, bool) {
	id := storage.ID(c.Param("id"))
	if !storage.Known(id) {
		c.JSON(http.StatusNotFound, errors.ErrProviderNotFound.WithMessage("Unknown provider id").ToResponse())
		return "", false
	}
	return id, true
}

// redactSecrets blanks the secret fields of a config payload for read
// responses.
func redactSecrets(id storage.ID, payload json.RawMessage) json.RawMessage {
	fields := storage.SecretFields(id)
	if len(fields) == 0 || len(payload) == 0 {
		return payload
	}

	var m map[string]interface{}
	if err := json.Unmarshal(payload, &m); err != nil {
		return payload
	}
	for _, field := range fields {
		if _, ok := m[field]; ok {
			m[field] = ""
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return out
}

// HandleStatuses returns the status of every configured provider
// @Summary      List provider statuses
// @Tags         Providers
// @Produce      json
// @Success      200  {array}   storage.Status
// @Failure      500  {object}  common.ErrorResponse
// @Router       /v1/providers [get]
func (h *Handler) HandleStatuses(c *gin.Context) {
	statuses, err := h.manager.Statuses()
	if err != nil {
		common.InternalError(c, err.Error())
		return
	}
	if statuses == nil {
		statuses = []storage.Status{}
	}
	c.JSON(http.StatusOK, statuses)
}

// HandleGet returns a provider configuration with secrets redacted
// @Summary      Get a provider configuration
// @Tags         Providers
// @Produce      json
// @Param        id   path      string  true  "Provider id"
// @Success      200  {object}  storage.Record
// @Failure      404  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/providers/{id} [get]
func (h *Handler) HandleGet(c *gin.Context) {
	id, ok := providerID(c)
	if !ok {
		return
	}

	rec, err := h.configRepo.GetProviderConfig(id)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	rec.Config = redactSecrets(id, rec.Config)
	c.JSON(http.StatusOK, rec)
}

// HandleUpsert creates or replaces a provider configuration
// @Summary      Configure a provider
// @Tags         Providers
// @Accept       json
// @Produce      json
// @Param        id       path      string         true  "Provider id"
// @Param        request  body      UpsertRequest  true  "Provider configuration"
// @Success      200      {object}  common.StatusResponse
// @Failure      400      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/providers/{id} [put]
func (h *Handler) HandleUpsert(c *gin.Context) {
	id, ok := providerID(c)
	if !ok {
		return
	}

	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}

	rec := &storage.Record{
		ProviderID: id,
		Name:       req.Name,
		Enabled:    req.Enabled,
		Config:     req.Config,
		UpdatedAt:  time.Now(),
	}
	if prev, err := h.configRepo.GetProviderConfig(id); err == nil {
		rec.CreatedAt = prev.CreatedAt
		if rec.Name == "" {
			rec.Name = prev.Name
		}
	}
	if err := h.configRepo.Upsert(rec); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	// Drop any cached client built from the previous configuration
	h.manager.Invalidate(id)

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "provider.configure", UserID: claims.UserID, UserName: claims.UserName, Resource: "provider:" + string(id), Success: true})
	}

	c.JSON(http.StatusOK, common.StatusResponse{Status: "ok", Message: "Provider configuration saved"})
}

// HandleSetEnabled toggles a provider without touching its configuration
// @Summary      Enable or disable a provider
// @Tags         Providers
// @Produce      json
// @Param        id       path      string  true  "Provider id"
// @Param        enabled  query     bool    true  "Desired state"
// @Success      200      {object}  common.StatusResponse
// @Failure      404      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/providers/{id}/enabled [put]
func (h *Handler) HandleSetEnabled(c *gin.Context) {
	id, ok := providerID(c)
	if !ok {
		return
	}

	enabled, err := strconv.ParseBool(c.Query("enabled"))
	if err != nil {
		common.BadRequest(c, "enabled must be true or false")
		return
	}

	if err := h.configRepo.SetEnabled(id, enabled); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}
	h.manager.Invalidate(id)

	c.JSON(http.StatusOK, common.StatusResponse{Status: "ok"})
}

// HandleDelete removes a provider configuration
// @Summary      Delete a provider configuration
// @Tags         Providers
// @Produce      json
// @Param        id   path  string  true  "Provider id"
// @Success      204  "No Content"
// @Failure      404  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/providers/{id} [delete]
func (h *Handler) HandleDelete(c *gin.Context) {
	id, ok := providerID(c)
	if !ok {
		return
	}

	if err := h.configRepo.Delete(id); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}
	h.manager.Invalidate(id)

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "provider.delete", UserID: claims.UserID, UserName: claims.UserName, Resource: "provider:" + string(id), Success: true})
	}

	c.Status(http.StatusNoContent)
}

// HandleTest runs a connectivity check against the configured backend
// @Summary      Test provider connectivity
// @Tags         Providers
// @Produce      json
// @Param        id   path      string  true  "Provider id"
// @Success      200  {object}  TestResponse
// @Security     BearerAuth
// @Router       /v1/providers/{id}/test [post]
func (h *Handler) HandleTest(c *gin.Context) {
	id, ok := providerID(c)
	if !ok {
		return
	}

	resp := TestResponse{Provider: id, Success: true}
	if err := h.manager.ValidateProvider(c.Request.Context(), id); err != nil {
		resp.Success = false
		resp.Error = errors.NewResponse(err).Message
		log.Warn("Provider connectivity check failed", "provider", id, "error", err)
	}

	c.JSON(http.StatusOK, resp)
}

// HandleTree returns the folder structure of a provider
// @Summary      Browse provider structure
// @Tags         Providers
// @Produce      json
// @Param        id     path      string  true   "Provider id"
// @Param        path   query     string  false  "Root path to browse from"
// @Param        depth  query     int     false  "Maximum depth (capped at 10)"
// @Success      200    {object}  storage.TreeNode
// @Failure      503    {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/providers/{id}/tree [get]
func (h *Handler) HandleTree(c *gin.Context) {
	id, ok := providerID(c)
	if !ok {
		return
	}

	root := c.Query("path")
	depth := storage.MaxTreeDepth
	if d := c.Query("depth"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			common.BadRequest(c, "depth must be a positive integer")
			return
		}
		depth = parsed
	}

	tree, err := h.manager.ProviderTree(c.Request.Context(), id, root, depth)
	if err != nil {
		if errors.IsTransient(err) {
			c.Header("Retry-After", "5")
		}
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	c.JSON(http.StatusOK, tree)
}
