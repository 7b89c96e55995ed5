package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
)

type TaskHandler struct {
	recorder
	taskService *service.TaskService
	reqService  *service.RequirementService
}

func NewTaskHandler(taskService *service.TaskService, reqService *service.RequirementService, activity *service.ActivityService) *TaskHandler {
	return &TaskHandler{recorder: recorder{activity}, taskService: taskService, reqService: reqService}
}

func (h *TaskHandler) projectOf(taskID uint) *uint {
	pid, err := h.taskService.ProjectIDOf(taskID)
	if err != nil {
		return nil
	}
	return &pid
}

type roleEffortInput struct {
	Role       string  `json:"role" binding:"required,max=64"`
	Hours      float64 `json:"hours" binding:"gt=0"`
	HourlyRate float64 `json:"hourly_rate" binding:"gte=0"`
}

// POST /requirements/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	requirementID := parseID(c.Param("id"))
	var req struct {
		Title          string            `json:"title" binding:"required,max=256"`
		Description    string            `json:"description"`
		System         string            `json:"system" binding:"max=128"`
		Status         string            `json:"status" binding:"omitempty,oneof=todo in_progress done blocked"`
		Priority       string            `json:"priority" binding:"omitempty,oneof=low medium high critical"`
		EstimatedHours float64           `json:"estimated_hours" binding:"gte=0"`
		AssigneeID     *uint             `json:"assignee_id"`
		RoleEfforts    []roleEffortInput `json:"role_efforts" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	task := &model.ImplementationTask{
		RequirementID:  requirementID,
		Title:          req.Title,
		Description:    req.Description,
		System:         req.System,
		Status:         req.Status,
		Priority:       req.Priority,
		EstimatedHours: req.EstimatedHours,
		AssigneeID:     req.AssigneeID,
	}
	for _, e := range req.RoleEfforts {
		task.RoleEfforts = append(task.RoleEfforts, model.RoleEffort{Role: e.Role, Hours: e.Hours, HourlyRate: e.HourlyRate})
	}
	if err := h.taskService.Create(task); err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	h.record(c, h.projectOf(task.ID), "task.created", "task", task.ID, task.Title, nil)
	created, err := h.taskService.GetByID(task.ID)
	if err != nil {
		respondError(c, err, "task not found")
		return
	}
	Created(c, created)
}

// GET /requirements/:id/tasks
func (h *TaskHandler) List(c *gin.Context) {
	requirementID := parseID(c.Param("id"))
	if _, err := h.reqService.GetByID(requirementID); err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	tasks, err := h.taskService.ListByRequirement(requirementID, c.Query("status"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	Success(c, tasks)
}

// GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.taskService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "task not found")
		return
	}
	Success(c, task)
}

// PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Title          *string  `json:"title" binding:"omitempty,min=1,max=256"`
		Description    *string  `json:"description"`
		System         *string  `json:"system" binding:"omitempty,max=128"`
		Status         *string  `json:"status" binding:"omitempty,oneof=todo in_progress done blocked"`
		Priority       *string  `json:"priority" binding:"omitempty,oneof=low medium high critical"`
		EstimatedHours *float64 `json:"estimated_hours" binding:"omitempty,gte=0"`
		// 0 unassigns.
		AssigneeID *uint `json:"assignee_id"`
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
	if req.System != nil {
		updates["system"] = *req.System
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.EstimatedHours != nil {
		updates["estimated_hours"] = *req.EstimatedHours
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == 0 {
			updates["assignee_id"] = nil
		} else {
			updates["assignee_id"] = *req.AssigneeID
		}
	}

	task, err := h.taskService.Update(id, updates)
	if err != nil {
		respondError(c, err, "task not found")
		return
	}
	h.record(c, h.projectOf(id), "task.updated", "task", id, task.Title, nil)
	Success(c, task)
}

// DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	projectID := h.projectOf(id)
	if err := h.taskService.Delete(id); err != nil {
		respondError(c, err, "task not found")
		return
	}
	h.record(c, projectID, "task.deleted", "task", id, "", nil)
	Success(c, nil)
}

// POST /tasks/:id/role-efforts
func (h *TaskHandler) AddRoleEffort(c *gin.Context) {
	taskID := parseID(c.Param("id"))
	var req roleEffortInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	effort := &model.RoleEffort{TaskID: taskID, Role: req.Role, Hours: req.Hours, HourlyRate: req.HourlyRate}
	if err := h.taskService.AddRoleEffort(effort); err != nil {
		respondError(c, err, "task not found")
		return
	}
	h.record(c, h.projectOf(taskID), "role_effort.created", "role_effort", effort.ID, effort.Role, nil)
	Created(c, effort)
}

// GET /tasks/:id/role-efforts
func (h *TaskHandler) ListRoleEfforts(c *gin.Context) {
	efforts, err := h.taskService.ListRoleEfforts(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "task not found")
		return
	}
	Success(c, efforts)
}

// PUT /role-efforts/:id
func (h *TaskHandler) UpdateRoleEffort(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Role       *string  `json:"role" binding:"omitempty,min=1,max=64"`
		Hours      *float64 `json:"hours" binding:"omitempty,gt=0"`
		HourlyRate *float64 `json:"hourly_rate" binding:"omitempty,gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	updates := make(map[string]interface{})
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.Hours != nil {
		updates["hours"] = *req.Hours
	}
	if req.HourlyRate != nil {
		updates["hourly_rate"] = *req.HourlyRate
	}

	effort, err := h.taskService.UpdateRoleEffort(id, updates)
	if err != nil {
		respondError(c, err, "role effort not found")
		return
	}
	h.record(c, h.projectOf(effort.TaskID), "role_effort.updated", "role_effort", id, effort.Role, nil)
	Success(c, effort)
}

// DELETE /role-efforts/:id
func (h *TaskHandler) DeleteRoleEffort(c *gin.Context) {
	id := parseID(c.Param("id"))
	effort, err := h.taskService.GetRoleEffort(id)
	if err != nil {
		respondError(c, err, "role effort not found")
		return
	}
	if err := h.taskService.DeleteRoleEffort(id); err != nil {
		respondError(c, err, "role effort not found")
		return
	}
	h.record(c, h.projectOf(effort.TaskID), "role_effort.deleted", "role_effort", id, effort.Role, nil)
	Success(c, nil)
}
