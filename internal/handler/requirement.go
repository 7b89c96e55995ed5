package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/notify"
	"github.com/reqforge/backend/internal/service"
)

type RequirementHandler struct {
	recorder
	reqService *service.RequirementService
	notifier   notify.Notifier
}

func NewRequirementHandler(reqService *service.RequirementService, activity *service.ActivityService, notifier notify.Notifier) *RequirementHandler {
	return &RequirementHandler{recorder: recorder{activity}, reqService: reqService, notifier: notifier}
}

// POST /projects/:id/requirements
func (h *RequirementHandler) Create(c *gin.Context) {
	projectID := parseID(c.Param("id"))
	var req struct {
		Title              string                   `json:"title" binding:"required,max=256"`
		Description        string                   `json:"description"`
		Category           string                   `json:"category" binding:"max=64"`
		Priority           string                   `json:"priority" binding:"omitempty,oneof=low medium high critical"`
		Status             string                   `json:"status" binding:"omitempty,oneof=draft in_review approved rejected implemented"`
		InputDataID        *uint                    `json:"input_data_id"`
		AcceptanceCriteria model.AcceptanceCriteria `json:"acceptance_criteria"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := checkCriteria(req.AcceptanceCriteria); err != nil {
		respondError(c, err, "")
		return
	}

	r := &model.Requirement{
		ProjectID:          projectID,
		InputDataID:        req.InputDataID,
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		Priority:           req.Priority,
		Status:             req.Status,
		AcceptanceCriteria: req.AcceptanceCriteria,
		CreatorID:          middleware.GetCurrentUserID(c),
	}
	if err := h.reqService.Create(r); err != nil {
		respondError(c, err, "project not found")
		return
	}
	h.record(c, ptr(projectID), "requirement.created", "requirement", r.ID, r.Code+" "+r.Title, nil)
	created, err := h.reqService.GetByID(r.ID)
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	Created(c, created)
}

// GET /projects/:id/requirements
func (h *RequirementHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	f := service.RequirementFilter{
		Status:      c.Query("status"),
		Priority:    c.Query("priority"),
		Category:    c.Query("category"),
		Keyword:     c.Query("keyword"),
		InputDataID: optionalID(c, "input_data_id"),
	}
	list, total, err := h.reqService.List(parseID(c.Param("id")), f, page, pageSize,
		c.DefaultQuery("sort_by", "code"), c.DefaultQuery("order", "asc"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, list, total, page, pageSize)
}

// GET /requirements/:id
func (h *RequirementHandler) Get(c *gin.Context) {
	r, err := h.reqService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	Success(c, r)
}

// PUT /requirements/:id
func (h *RequirementHandler) Update(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Title       *string `json:"title" binding:"omitempty,min=1,max=256"`
		Description *string `json:"description"`
		Category    *string `json:"category" binding:"omitempty,max=64"`
		Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high critical"`
		Status      *string `json:"status" binding:"omitempty,oneof=draft in_review approved rejected implemented"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	before, after, err := h.reqService.Update(id, updates)
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}

	if before.Status != after.Status {
		h.record(c, ptr(after.ProjectID), "requirement.status_changed", "requirement", id,
			fmt.Sprintf("%s moved from %s to %s", after.Code, before.Status, after.Status),
			model.JSONMap{"old_status": before.Status, "new_status": after.Status})
		event := notify.RequirementStatusChangedEvent{
			RequirementID: after.ID,
			Code:          after.Code,
			Title:         after.Title,
			ProjectID:     after.ProjectID,
			OldStatus:     before.Status,
			NewStatus:     after.Status,
		}
		if after.Project != nil {
			event.ProjectName = after.Project.Name
		}
		if u := middleware.GetCurrentUser(c); u != nil {
			event.ChangedBy = u.Name
		}
		notify.Async(func(ctx context.Context) error {
			return h.notifier.NotifyRequirementStatusChanged(ctx, event)
		})
	} else {
		h.record(c, ptr(after.ProjectID), "requirement.updated", "requirement", id, after.Code+" "+after.Title, nil)
	}
	Success(c, after)
}

// DELETE /requirements/:id
func (h *RequirementHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	r, err := h.reqService.GetByID(id)
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	if err := h.reqService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	h.record(c, ptr(r.ProjectID), "requirement.deleted", "requirement", id, r.Code+" "+r.Title, nil)
	Success(c, nil)
}

func checkCriteria(criteria model.AcceptanceCriteria) error {
	for i, ac := range criteria {
		if strings.TrimSpace(ac.Description) == "" && (ac.Gherkin == nil || ac.Gherkin.Scenario == "") {
			return fmt.Errorf("40001:acceptance criterion %d needs a description or scenario", i+1)
		}
	}
	return nil
}

// PUT /requirements/:id/acceptance-criteria
func (h *RequirementHandler) SetAcceptanceCriteria(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		AcceptanceCriteria model.AcceptanceCriteria `json:"acceptance_criteria" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := checkCriteria(req.AcceptanceCriteria); err != nil {
		respondError(c, err, "")
		return
	}
	for i := range req.AcceptanceCriteria {
		if req.AcceptanceCriteria[i].ID == "" {
			req.AcceptanceCriteria[i].ID = fmt.Sprintf("AC-%d", i+1)
		}
	}
	if _, err := h.reqService.GetByID(id); err != nil {
		respondError(c, err, "requirement not found")
		return
	}

	r, err := h.reqService.SetAcceptanceCriteria(id, req.AcceptanceCriteria)
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	h.record(c, ptr(r.ProjectID), "requirement.criteria_updated", "requirement", id,
		fmt.Sprintf("%s now has %d acceptance criteria", r.Code, len(r.AcceptanceCriteria)), nil)
	Success(c, r)
}
