package common

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/photariumd/auth"
)

// GetClaimsFromContext retrieves the token claims stored by auth middleware
func GetClaimsFromContext(c *gin.Context) *auth.TokenClaims {
	if claims, exists := c.Get("claims"); exists {
		if tokenClaims, ok := claims.(*auth.TokenClaims); ok {
			return tokenClaims
		}
	}
	return nil
}

// GetTokenClaimsFromRequest extracts and validates JWT claims from the
// request. The token is read from X-Subject-Token, the Authorization
// bearer header, or a token query parameter. The query fallback exists
// for <img> tags pointing at photo URLs, where headers cannot be set.
func GetTokenClaimsFromRequest(c *gin.Context, jwtService *auth.JWTService) *auth.TokenClaims {
	token := c.GetHeader("X-Subject-Token")
	if token == "" {
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		return nil
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}

func respond(c *gin.Context, status int, label, message string) {
	c.JSON(status, ErrorResponse{Error: label, Code: status, Message: message})
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, "Bad request", message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(c *gin.Context, message string) {
	respond(c, http.StatusUnauthorized, "Unauthorized", message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(c *gin.Context, message string) {
	respond(c, http.StatusInternalServerError, "Internal server error", message)
}

// AbortUnauthorized aborts the request with a 401 Unauthorized response
func AbortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "Unauthorized",
		Code:    http.StatusUnauthorized,
		Message: message,
	})
}

// AbortForbidden aborts the request with a 403 Forbidden response
func AbortForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
		Error:   "Forbidden",
		Code:    http.StatusForbidden,
		Message: message,
	})
}
