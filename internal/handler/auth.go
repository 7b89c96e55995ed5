package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
	"go.uber.org/zap"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	recorder
	authService *service.AuthService
	cookie      CookieConfig
}

func NewAuthHandler(authService *service.AuthService, activity *service.ActivityService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{recorder: recorder{activity}, authService: authService, cookie: cookie}
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email,max=255"`
		Name        string `json:"name" binding:"required,max=128"`
		Password    string `json:"password" binding:"required,min=8,max=72"`
		InviteToken string `json:"invite_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.Register(req.Email, req.Name, req.Password, req.InviteToken)
	if err != nil {
		respondError(c, err, "")
		return
	}
	zap.L().Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	h.activity.Record(c.Request.Context(), &model.Activity{
		UserID:      user.ID,
		Action:      "user.registered",
		EntityType:  "user",
		EntityID:    user.ID,
		Description: user.Email + " registered as " + user.Role,
	})
	Created(c, user)
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, token, expireAt, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.setCookie(c, token, int(time.Until(expireAt).Seconds()))
	Success(c, gin.H{
		"token":      token,
		"expires_at": expireAt,
		"user":       user,
	})
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.GetCurrentUserID(c), middleware.GetSessionID(c)); err != nil {
		respondError(c, err, "")
		return
	}
	h.setCookie(c, "", -1)
	Success(c, nil)
}

// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		Unauthorized(c, 40101, "not authenticated")
		return
	}
	Success(c, user)
}
