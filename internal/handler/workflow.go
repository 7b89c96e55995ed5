package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
)

type WorkflowHandler struct {
	recorder
	workflowService *service.WorkflowService
}

func NewWorkflowHandler(workflowService *service.WorkflowService, activity *service.ActivityService) *WorkflowHandler {
	return &WorkflowHandler{recorder: recorder{activity}, workflowService: workflowService}
}

// POST /projects/:id/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	projectID := parseID(c.Param("id"))
	var req struct {
		Name          string               `json:"name" binding:"required,max=128"`
		Description   string               `json:"description"`
		RequirementID *uint                `json:"requirement_id"`
		Nodes         []model.WorkflowNode `json:"nodes" binding:"dive"`
		Edges         []model.WorkflowEdge `json:"edges" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	wf := &model.Workflow{
		ProjectID:     projectID,
		RequirementID: req.RequirementID,
		Name:          req.Name,
		Description:   req.Description,
		Nodes:         req.Nodes,
		Edges:         req.Edges,
		Source:        model.WorkflowSourceManual,
		CreatedBy:     middleware.GetCurrentUserID(c),
	}
	if err := h.workflowService.Create(wf); err != nil {
		respondError(c, err, "project not found")
		return
	}
	h.record(c, ptr(projectID), "workflow.created", "workflow", wf.ID, wf.Name, nil)
	Created(c, wf)
}

// GET /projects/:id/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	list, err := h.workflowService.List(parseID(c.Param("id")), optionalID(c, "requirement_id"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	Success(c, list)
}

// GET /workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	wf, err := h.workflowService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "workflow not found")
		return
	}
	Success(c, wf)
}

// PUT /workflows/:id
func (h *WorkflowHandler) Update(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Name          *string               `json:"name" binding:"omitempty,min=1,max=128"`
		Description   *string               `json:"description"`
		RequirementID *uint                 `json:"requirement_id"`
		Nodes         *[]model.WorkflowNode `json:"nodes" binding:"omitempty,dive"`
		Edges         *[]model.WorkflowEdge `json:"edges" binding:"omitempty,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.RequirementID != nil {
		if *req.RequirementID == 0 {
			updates["requirement_id"] = (*uint)(nil)
		} else {
			updates["requirement_id"] = req.RequirementID
		}
	}
	if req.Nodes != nil {
		updates["nodes"] = *req.Nodes
	}
	if req.Edges != nil {
		updates["edges"] = *req.Edges
	}

	wf, err := h.workflowService.Update(id, updates)
	if err != nil {
		respondError(c, err, "workflow not found")
		return
	}
	h.record(c, ptr(wf.ProjectID), "workflow.updated", "workflow", id, wf.Name, nil)
	Success(c, wf)
}

// POST /workflows/:id/layout
func (h *WorkflowHandler) Layout(c *gin.Context) {
	id := parseID(c.Param("id"))
	wf, err := h.workflowService.ApplyLayout(id)
	if err != nil {
		respondError(c, err, "workflow not found")
		return
	}
	h.record(c, ptr(wf.ProjectID), "workflow.layout", "workflow", id, wf.Name, nil)
	Success(c, wf)
}

// DELETE /workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	wf, err := h.workflowService.GetByID(id)
	if err != nil {
		respondError(c, err, "workflow not found")
		return
	}
	if err := h.workflowService.Delete(id); err != nil {
		respondError(c, err, "workflow not found")
		return
	}
	h.record(c, ptr(wf.ProjectID), "workflow.deleted", "workflow", id, wf.Name, nil)
	Success(c, nil)
}
