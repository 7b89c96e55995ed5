package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole lets admins through unconditionally.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAdmin(c) {
			c.Next()
			return
		}
		userRole := GetCurrentUserRole(c)
		for _, r := range roles {
			if userRole == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, 40301, "insufficient permissions")
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			abort(c, http.StatusForbidden, 40301, "insufficient permissions")
			return
		}
		c.Next()
	}
}
