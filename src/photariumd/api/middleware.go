package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/access"
	"github.com/photarium/photarium/src/photariumd/api/common"
	"github.com/photarium/photarium/src/photariumd/auth"
)

// throttle aborts the request with 429 when the caller exceeds limit.
// Returns false when the request was aborted.
func (a *API) throttle(c *gin.Context, key string, limit int) bool {
	if a.rateLimiter == nil || a.rateLimiter.Allow(key, limit) {
		return true
	}
	c.Header("Retry-After", "60")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errors.ErrRateLimited.ToResponse())
	return false
}

// callerKey identifies the caller for rate limiting, preferring the
// authenticated user over the client IP.
func callerKey(c *gin.Context) string {
	if claims, ok := c.Get("claims"); ok {
		if tc, ok := claims.(*auth.TokenClaims); ok {
			return fmt.Sprintf("user:%s", tc.UserID)
		}
	}
	return "ip:" + c.ClientIP()
}

// rateLimitAuth returns middleware that rate-limits auth endpoints.
// Always keyed by IP since the caller is not authenticated yet.
func (a *API) rateLimitAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit := a.rateLimitConfig().AuthRequestsPerMin; !a.throttle(c, "ip:"+c.ClientIP(), limit) {
			return
		}
		c.Next()
	}
}

// rateLimitAPI returns middleware that rate-limits general API endpoints.
func (a *API) rateLimitAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit := a.rateLimitConfig().APIRequestsPerMin; !a.throttle(c, callerKey(c), limit) {
			return
		}
		c.Next()
	}
}

// rateLimitFiles returns middleware for the photo streaming route, which
// is public and carries a higher budget than the JSON API.
func (a *API) rateLimitFiles() gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit := a.rateLimitConfig().FileRequestsPerMin; !a.throttle(c, "ip:"+c.ClientIP(), limit) {
			return
		}
		c.Next()
	}
}

func (a *API) rateLimitConfig() RateLimitConfig {
	if a.rateLimiter == nil {
		return RateLimitConfig{}
	}
	return a.rateLimiter.config
}

// getTokenClaims extracts and validates JWT claims from the request.
// Returns nil if no valid token is present (for optional auth).
func (a *API) getTokenClaims(c *gin.Context) *auth.TokenClaims {
	return common.GetTokenClaimsFromRequest(c, a.jwtService)
}

// optionalAuth attaches claims to the context when a valid token is
// present but never rejects the request. View filtering downstream treats
// missing claims as an anonymous visitor.
func (a *API) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := a.getTokenClaims(c); claims != nil {
			c.Set("claims", claims)
		}
		c.Next()
	}
}

// authRequired is a middleware that requires a valid JWT token
func (a *API) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := a.getTokenClaims(c)
		if claims == nil {
			common.AbortUnauthorized(c, "Authentication required")
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// uploadAccessRequired requires an authenticated user whose role can
// upload at all. Per-provider restrictions are enforced by the handlers.
func (a *API) uploadAccessRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := a.getTokenClaims(c)
		if claims == nil {
			common.AbortUnauthorized(c, "Authentication required")
			return
		}

		if claims.Role != access.RoleAdmin && claims.Role != access.RoleOwner {
			common.AbortForbidden(c, "Upload access denied")
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// adminAccessRequired is a middleware that requires the admin role
func (a *API) adminAccessRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := a.getTokenClaims(c)
		if claims == nil {
			common.AbortUnauthorized(c, "Authentication required")
			return
		}

		if claims.Role != access.RoleAdmin {
			common.AbortForbidden(c, "Admin access required")
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
