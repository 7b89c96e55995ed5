package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/notify"
	"github.com/reqforge/backend/internal/service"
)

type InviteHandler struct {
	recorder
	inviteService *service.InviteService
	notifier      notify.Notifier
}

func NewInviteHandler(inviteService *service.InviteService, activity *service.ActivityService, notifier notify.Notifier) *InviteHandler {
	return &InviteHandler{recorder: recorder{activity}, inviteService: inviteService, notifier: notifier}
}

// POST /invites
func (h *InviteHandler) Create(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email,max=255"`
		Role  string `json:"role" binding:"required,oneof=admin manager analyst viewer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inviter := middleware.GetCurrentUser(c)
	invite, err := h.inviteService.Create(req.Email, req.Role, inviter)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.record(c, nil, "invite.created", "invite", invite.ID, "invited "+invite.Email+" as "+invite.Role, nil)

	event := notify.InviteCreatedEvent{
		InviteID:    invite.ID,
		Email:       invite.Email,
		Role:        invite.Role,
		Token:       invite.Token,
		InviterName: inviter.Name,
		ExpiresAt:   invite.ExpiresAt,
	}
	notify.Async(func(ctx context.Context) error {
		return h.notifier.NotifyInviteCreated(ctx, event)
	})
	Created(c, invite)
}

// GET /invites
func (h *InviteHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	pending := c.Query("pending") == "true" || c.Query("pending") == "1"
	invites, total, err := h.inviteService.List(pending, page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, invites, total, page, pageSize)
}

// DELETE /invites/:id
func (h *InviteHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	if err := h.inviteService.Delete(id); err != nil {
		respondError(c, err, "invite not found")
		return
	}
	h.record(c, nil, "invite.deleted", "invite", id, "", nil)
	Success(c, nil)
}

// GET /invites/:token
func (h *InviteHandler) Validate(c *gin.Context) {
	invite, err := h.inviteService.Validate(c.Param("token"))
	if err != nil {
		respondError(c, err, "invite not found")
		return
	}
	Success(c, gin.H{
		"email":      invite.Email,
		"role":       invite.Role,
		"expires_at": invite.ExpiresAt,
	})
}
