// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"coupon-service/internal/pkg/jwt"
	"coupon-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokens *jwt.Manager
}

func NewAuthMiddleware(tokens *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Auth validates the bearer token and places the caller's identity in the
// request context: user_id, roles, and the first-time-user signal consumed by
// first_time_user_only coupons.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("roles", claims.Roles)
		c.Set("first_time_user", claims.FirstTimeUser)

		c.Next()
	}
}

// RequireRole requires the caller to have at least one of the given roles.
// MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, role := range roles {
			if HasRole(c, role) {
				c.Next()
				return
			}
		}
		response.Error(c, http.StatusForbidden, "insufficient permissions", nil)
	}
}

// AdminOnly is the middleware chain for administrative routes.
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.Auth(), m.RequireRole("admin", "super_admin")}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
