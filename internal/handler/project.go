package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/service"
)

type ProjectHandler struct {
	recorder
	projectService *service.ProjectService
	taskService    *service.TaskService
}

func NewProjectHandler(projectService *service.ProjectService, taskService *service.TaskService, activity *service.ActivityService) *ProjectHandler {
	return &ProjectHandler{recorder: recorder{activity}, projectService: projectService, taskService: taskService}
}

// POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required,max=128"`
		Description string `json:"description" binding:"max=5000"`
		CustomerID  *uint  `json:"customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	project, err := h.projectService.Create(req.Name, req.Description, req.CustomerID, middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.record(c, ptr(project.ID), "project.created", "project", project.ID, project.Name, nil)
	Created(c, project)
}

// GET /projects
func (h *ProjectHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	status := c.Query("status")
	if !middleware.IsAdmin(c) && status == "" {
		status = "active"
	}
	projects, total, err := h.projectService.List(c.Query("keyword"), status, optionalID(c, "customer_id"),
		page, pageSize, c.DefaultQuery("sort_by", "updated_at"), c.DefaultQuery("order", "desc"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, projects, total, page, pageSize)
}

// GET /projects/:id
func (h *ProjectHandler) GetDetail(c *gin.Context) {
	project, err := h.projectService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	Success(c, project)
}

// GET /projects/:id/stats
func (h *ProjectHandler) Stats(c *gin.Context) {
	stats, err := h.projectService.Stats(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	Success(c, stats)
}

// GET /projects/:id/role-effort
func (h *ProjectHandler) RoleEffort(c *gin.Context) {
	rows, err := h.taskService.RoleEffortSummary(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	var hours, cost float64
	for _, r := range rows {
		hours += r.Hours
		cost += r.Cost
	}
	if rows == nil {
		rows = []service.RoleEffortRow{}
	}
	Success(c, gin.H{"roles": rows, "total_hours": hours, "total_cost": cost})
}

// PUT /projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Name        *string `json:"name" binding:"omitempty,min=1,max=128"`
		Description *string `json:"description" binding:"omitempty,max=5000"`
		Status      *string `json:"status" binding:"omitempty,oneof=active archived"`
		// 0 detaches the customer.
		CustomerID *uint `json:"customer_id"`
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
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.CustomerID != nil {
		if *req.CustomerID == 0 {
			updates["customer_id"] = (*uint)(nil)
		} else {
			updates["customer_id"] = req.CustomerID
		}
	}

	project, err := h.projectService.Update(id, updates)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	action := "project.updated"
	if req.Status != nil && *req.Status == "archived" {
		action = "project.archived"
	}
	h.record(c, ptr(id), action, "project", id, project.Name, nil)
	Success(c, project)
}

// DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	project, err := h.projectService.GetByID(id)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	if err := h.projectService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "project not found")
		return
	}
	// The project's own activity rows went with it.
	h.record(c, nil, "project.deleted", "project", id, project.Name, nil)
	Success(c, nil)
}
