package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/service"
)

type UserHandler struct {
	recorder
	authService *service.AuthService
}

func NewUserHandler(authService *service.AuthService, activity *service.ActivityService) *UserHandler {
	return &UserHandler{recorder: recorder{activity}, authService: authService}
}

// GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, pageSize := parsePage(c)
	var status *int
	if s := c.Query("status"); s != "" {
		v, _ := strconv.Atoi(s)
		status = &v
	}

	users, total, err := h.authService.ListUsers(c.Query("keyword"), c.Query("role"), status, page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, users, total, page, pageSize)
}

// PUT /users/:id/role
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Role string `json:"role" binding:"required,oneof=admin manager analyst viewer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.UpdateRole(id, req.Role)
	if err != nil {
		respondError(c, err, "user not found")
		return
	}
	h.record(c, nil, "user.role_changed", "user", user.ID, user.Email+" is now "+user.Role, nil)
	Success(c, user)
}

// PUT /users/:id/status
func (h *UserHandler) UpdateUserStatus(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Status *int `json:"status" binding:"required,oneof=0 1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if id == middleware.GetCurrentUserID(c) && *req.Status == 0 {
		BadRequest(c, 40003, "you cannot disable your own account")
		return
	}

	user, err := h.authService.UpdateUserStatus(c.Request.Context(), id, *req.Status)
	if err != nil {
		respondError(c, err, "user not found")
		return
	}
	action := "user.enabled"
	if user.Status == 0 {
		action = "user.disabled"
	}
	h.record(c, nil, action, "user", user.ID, user.Email, nil)
	Success(c, user)
}
