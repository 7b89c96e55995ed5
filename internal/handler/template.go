package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
	"gorm.io/datatypes"
)

type TemplateHandler struct {
	recorder
	templateService *service.TemplateService
}

func NewTemplateHandler(templateService *service.TemplateService, activity *service.ActivityService) *TemplateHandler {
	return &TemplateHandler{recorder: recorder{activity}, templateService: templateService}
}

// POST /templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req struct {
		Name        string               `json:"name" binding:"required,max=128"`
		Description string               `json:"description"`
		Category    string               `json:"category" binding:"max=64"`
		Schema      model.TemplateSchema `json:"schema"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t := &model.DocumentTemplate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Schema:      datatypes.NewJSONType(req.Schema),
		CreatedBy:   middleware.GetCurrentUserID(c),
	}
	if err := h.templateService.Create(t); err != nil {
		respondError(c, err, "")
		return
	}
	h.record(c, nil, "template.created", "template", t.ID, t.Name, nil)
	Created(c, t)
}

// GET /templates
func (h *TemplateHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	list, total, err := h.templateService.List(c.Query("keyword"), c.Query("category"), page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, list, total, page, pageSize)
}

// GET /templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.templateService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "template not found")
		return
	}
	Success(c, t)
}

// PUT /templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Name        *string               `json:"name" binding:"omitempty,min=1,max=128"`
		Description *string               `json:"description"`
		Category    *string               `json:"category" binding:"omitempty,max=64"`
		Schema      *model.TemplateSchema `json:"schema"`
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
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Schema != nil {
		updates["schema"] = *req.Schema
	}

	t, err := h.templateService.Update(id, updates)
	if err != nil {
		respondError(c, err, "template not found")
		return
	}
	h.record(c, nil, "template.updated", "template", id, t.Name, nil)
	Success(c, t)
}

// DELETE /templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	if err := h.templateService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "template not found")
		return
	}
	h.record(c, nil, "template.deleted", "template", id, "", nil)
	Success(c, nil)
}

// GET /templates/:id/field-mappings
func (h *TemplateHandler) FieldMappings(c *gin.Context) {
	list, err := h.templateService.FieldMappings(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "template not found")
		return
	}
	Success(c, list)
}

// PUT /templates/:id/field-mappings
func (h *TemplateHandler) ReplaceFieldMappings(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Mappings []struct {
			FieldName   string `json:"field_name" binding:"required,max=128"`
			Kind        string `json:"kind" binding:"required,oneof=database ai static"`
			DataSource  string `json:"data_source"`
			DataField   string `json:"data_field"`
			AIPrompt    string `json:"ai_prompt"`
			StaticValue string `json:"static_value"`
		} `json:"mappings" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mappings := make([]model.FieldMapping, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		mappings = append(mappings, model.FieldMapping{
			FieldName:   m.FieldName,
			Kind:        m.Kind,
			DataSource:  m.DataSource,
			DataField:   m.DataField,
			AIPrompt:    m.AIPrompt,
			StaticValue: m.StaticValue,
		})
	}
	list, err := h.templateService.ReplaceFieldMappings(id, mappings)
	if err != nil {
		respondError(c, err, "template not found")
		return
	}
	h.record(c, nil, "template.field_mappings_replaced", "template", id, "", model.JSONMap{"mappings": len(list)})
	Success(c, list)
}
