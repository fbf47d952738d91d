// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetUserID gets the authenticated user's ID from context.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// MustGetUserID gets the user ID from context or panics.
func MustGetUserID(c *gin.Context) uuid.UUID {
	id, exists := GetUserID(c)
	if !exists {
		panic("user_id not found in context")
	}
	return id
}

// GetRoles gets user roles from context.
func GetRoles(c *gin.Context) []string {
	v, exists := c.Get("roles")
	if !exists {
		return []string{}
	}
	roles, ok := v.([]string)
	if !ok {
		return []string{}
	}
	return roles
}

// HasRole checks whether the caller has a specific role.
func HasRole(c *gin.Context, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}

// IsFirstTimeUser returns the identity service's first-time-user signal.
func IsFirstTimeUser(c *gin.Context) bool {
	v, exists := c.Get("first_time_user")
	if !exists {
		return false
	}
	first, ok := v.(bool)
	return ok && first
}
