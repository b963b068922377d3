// Package middleware provides HTTP middleware for the fieldops API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"fieldops/internal/core/security"
)

// UserContext copies the authenticated user id into the request context, where
// domain services read it through security.Actor for audit attribution.
// Must run after Auth.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetString("user_id"); uid != "" {
			c.Request = c.Request.WithContext(security.WithUserID(c.Request.Context(), uid))
		}
		c.Next()
	}
}
