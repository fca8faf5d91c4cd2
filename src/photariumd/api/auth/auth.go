package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/photariumd/api/common"
	coreauth "github.com/photarium/photarium/src/photariumd/auth"
)

var log *logs.Logger

// SetLogger sets the logger for the auth api package
func SetLogger(l *logs.Logger) {
	log = l
}

// Handler handles authentication HTTP requests
type Handler struct {
	userManager *coreauth.UserManager
	jwtService  *coreauth.JWTService
}

// Config contains configuration options for the Handler
type Config struct {
	UserManager *coreauth.UserManager
	JWTService  *coreauth.JWTService
}

// NewHandler creates a new auth handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		userManager: cfg.UserManager,
		jwtService:  cfg.JWTService,
	}
}

// LoginRequest is the credentials payload for login and account creation.
type LoginRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func extractToken(c *gin.Context) string {
	token := c.GetHeader("X-Subject-Token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if t, found := strings.CutPrefix(authHeader, "Bearer "); found {
			token = t
		}
	}
	return token
}

// HandleCreate creates a new user account (admin only, enforced by route
// middleware)
func (h *Handler) HandleCreate(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}

	user, err := h.userManager.CreateUser(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	claims := common.GetClaimsFromContext(c)
	actorID := ""
	actorName := ""
	if claims != nil {
		actorID = claims.UserID
		actorName = claims.UserName
	}
	common.AuditLog(c, common.AuditEvent{Action: "auth.create", UserID: actorID, UserName: actorName, Resource: "user:" + user.ID, Success: true})

	c.JSON(http.StatusCreated, gin.H{
		"user": gin.H{
			"id":         user.ID,
			"name":       user.Name,
			"email":      user.Email,
			"role":       user.Role,
			"created_at": user.CreatedAt,
		},
	})
}

// HandleLogin authenticates a user with name and password and issues a JWT
func (h *Handler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrInvalidJSON.ToResponse())
		return
	}

	if req.Name == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, errors.ErrValidationFailed.WithMessage("Name and password are required").ToResponse())
		return
	}

	user, err := h.userManager.Authenticate(req.Name, req.Password)
	if err != nil {
		common.AuditLog(c, common.AuditEvent{Action: "auth.login", Detail: "invalid credentials for " + req.Name, Success: false})
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	token, err := h.jwtService.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errors.ErrInternal.ToResponse())
		return
	}

	common.AuditLog(c, common.AuditEvent{Action: "auth.login", UserID: user.ID, UserName: user.Name, Success: true})

	c.Header("X-Subject-Token", token)
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// HandleLogout revokes the current JWT token
func (h *Handler) HandleLogout(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, errors.ErrNoToken.ToResponse())
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errors.ErrTokenInvalid.ToResponse())
		return
	}

	if err := h.jwtService.RevokeToken(token); err != nil {
		if log != nil {
			log.Error("Failed to revoke token", "user", claims.UserName, "user_id", claims.UserID, "error", err)
		}
		c.JSON(http.StatusInternalServerError, errors.ErrInternal.ToResponse())
		return
	}

	if log != nil {
		log.Info("User logged out", "user", claims.UserName, "user_id", claims.UserID)
	}
	common.AuditLog(c, common.AuditEvent{Action: "auth.logout", UserID: claims.UserID, UserName: claims.UserName, Success: true})

	c.JSON(http.StatusOK, gin.H{
		"message": "Token revoked successfully",
		"user_id": claims.UserID,
	})
}

// HandleValidate validates the current access token and returns user info
func (h *Handler) HandleValidate(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, errors.ErrNoToken.ToResponse())
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), errors.NewResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":                claims.UserID,
			"name":              claims.UserName,
			"email":             claims.Email,
			"role":              claims.Role,
			"group_aliases":     claims.GroupAliases,
			"allowed_providers": claims.AllowedProviders,
		},
	})
}
