package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/session"
	"github.com/reqforge/backend/pkg/jwt"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuthConfig struct {
	JWTSecret  string
	CookieName string
}

func abort(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": msg, "data": nil})
}

// tokenFrom looks at the session cookie, then the Authorization header, then
// the token query param (EventSource cannot set headers).
func tokenFrom(c *gin.Context, cookieName string) (string, bool) {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v, true
	}
	if h := c.GetHeader("Authorization"); h != "" {
		tok := strings.TrimPrefix(h, "Bearer ")
		if tok == h {
			return "", false
		}
		return tok, true
	}
	if q := c.Query("token"); q != "" {
		return q, true
	}
	return "", true
}

func AuthMiddleware(cfg AuthConfig, db *gorm.DB, sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := tokenFrom(c, cfg.CookieName)
		if !ok {
			abort(c, http.StatusUnauthorized, 40101, "malformed authorization header")
			return
		}
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, 40101, "not authenticated")
			return
		}

		claims, err := jwt.ParseToken(cfg.JWTSecret, tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrExpired) {
				abort(c, http.StatusUnauthorized, 40102, "session expired, please log in again")
			} else {
				abort(c, http.StatusUnauthorized, 40103, "invalid token")
			}
			return
		}

		if err := sessions.Validate(c.Request.Context(), claims.UserID, claims.SessionID); err != nil {
			if errors.Is(err, session.ErrSuperseded) {
				abort(c, http.StatusUnauthorized, 40105, "session superseded by a newer login")
				return
			}
			zap.L().Error("session lookup failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
			abort(c, http.StatusInternalServerError, 50001, "session store unavailable")
			return
		}

		var user model.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			abort(c, http.StatusUnauthorized, 40103, "user not found")
			return
		}
		if user.Status == model.UserStatusDisabled {
			abort(c, http.StatusForbidden, 40104, "account disabled")
			return
		}

		c.Set("userID", user.ID)
		c.Set("userRole", user.Role)
		c.Set("sessionID", claims.SessionID)
		c.Set("user", &user)
		c.Next()
	}
}

func GetCurrentUser(c *gin.Context) *model.User {
	u, exists := c.Get("user")
	if !exists {
		return nil
	}
	return u.(*model.User)
}

func GetCurrentUserID(c *gin.Context) uint {
	id, _ := c.Get("userID")
	v, _ := id.(uint)
	return v
}

func GetCurrentUserRole(c *gin.Context) string {
	role, _ := c.Get("userRole")
	v, _ := role.(string)
	return v
}

func GetSessionID(c *gin.Context) string {
	return c.GetString("sessionID")
}

func IsAdmin(c *gin.Context) bool {
	return GetCurrentUserRole(c) == model.RoleAdmin
}
