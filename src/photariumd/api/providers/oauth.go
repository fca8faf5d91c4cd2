package providers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/api/common"
	"github.com/photarium/photarium/src/photariumd/storage"
)

// OAuthURLResponse carries the consent URL the client should open.
type OAuthURLResponse struct {
	URL string `json:"url"`
}

// OAuthExchangeRequest carries the authorization code returned by the
// consent flow.
type OAuthExchangeRequest struct {
	Code        string `json:"code"`
	RedirectURL string `json:"redirectUrl"`
}

func (h *Handler) driveConfig(c *gin.Context) (*storage.Record, *storage.DriveConfig, bool) {
	// OAuth endpoints are registered under /:id but only the drive
	// provider has a consent flow
	if storage.ID(c.Param("id")) != storage.Drive {
		c.JSON(http.StatusNotFound, errors.ErrProviderNotFound.WithMessage("Provider has no OAuth flow").ToResponse())
		return nil, nil, false
	}

	rec, err := h.configRepo.GetProviderConfig(storage.Drive)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return nil, nil, false
	}

	cfg, err := rec.Decode()
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return nil, nil, false
	}
	return rec, cfg.Drive, true
}

// HandleOAuthURL returns the consent URL for authorizing the drive provider
// @Summary      Get drive authorization URL
// @Tags         Providers
// @Produce      json
// @Param        state         query     string  false  "Opaque state echoed back on the redirect"
// @Param        redirect_url  query     string  true   "Redirect URL registered with the OAuth client"
// @Success      200           {object}  OAuthURLResponse
// @Failure      404           {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/providers/drive/oauth/url [get]
func (h *Handler) HandleOAuthURL(c *gin.Context) {
	redirectURL := c.Query("redirect_url")
	if redirectURL == "" {
		common.BadRequest(c, "redirect_url is required")
		return
	}

	_, driveCfg, ok := h.driveConfig(c)
	if !ok {
		return
	}

	url := storage.DriveAuthURL(*driveCfg, c.Query("state"), redirectURL)
	c.JSON(http.StatusOK, OAuthURLResponse{URL: url})
}

// HandleOAuthExchange exchanges an authorization code and persists the
// resulting refresh token into the drive configuration
// @Summary      Complete drive authorization
// @Tags         Providers
// @Accept       json
// @Produce      json
// @Param        request  body      OAuthExchangeRequest  true  "Authorization code"
// @Success      200      {object}  common.StatusResponse
// @Failure      400      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/providers/drive/oauth/exchange [post]
func (h *Handler) HandleOAuthExchange(c *gin.Context) {
	var req OAuthExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}
	if req.Code == "" || req.RedirectURL == "" {
		common.BadRequest(c, "code and redirectUrl are required")
		return
	}

	rec, driveCfg, ok := h.driveConfig(c)
	if !ok {
		return
	}

	token, err := storage.DriveExchangeCode(c.Request.Context(), *driveCfg, req.Code, req.RedirectURL)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	driveCfg.RefreshToken = token.RefreshToken
	payload, err := json.Marshal(driveCfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errors.ErrInternal.ToResponse())
		return
	}

	rec.Config = payload
	rec.UpdatedAt = time.Now()
	if err := h.configRepo.Upsert(rec); err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	// Token change means any cached client is stale
	h.manager.Invalidate(storage.Drive)
	h.manager.Lifecycle().Reset(storage.Drive)

	log.Info("Drive provider authorized", "folder_id", driveCfg.FolderID)

	claims := common.GetClaimsFromContext(c)
	if claims != nil {
		common.AuditLog(c, common.AuditEvent{Action: "provider.oauth", UserID: claims.UserID, UserName: claims.UserName, Resource: "provider:drive", Success: true})
	}

	c.JSON(http.StatusOK, common.StatusResponse{Status: "ok", Message: "Drive authorization complete"})
}
