package handler

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/service"
)

type DocumentHandler struct {
	recorder
	documentService *service.DocumentService
}

func NewDocumentHandler(documentService *service.DocumentService, activity *service.ActivityService) *DocumentHandler {
	return &DocumentHandler{recorder: recorder{activity}, documentService: documentService}
}

// POST /templates/:id/documents
func (h *DocumentHandler) Generate(c *gin.Context) {
	templateID := parseID(c.Param("id"))
	var req struct {
		ProjectID uint   `json:"project_id" binding:"required"`
		Name      string `json:"name" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	doc, err := h.documentService.Generate(c.Request.Context(), service.GenerateDocumentInput{
		TemplateID: templateID,
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		UserID:     middleware.GetCurrentUserID(c),
	})
	if err != nil {
		respondError(c, err, "template not found")
		return
	}
	h.record(c, ptr(doc.ProjectID), "document."+doc.Status, "document", doc.ID, doc.Name, nil)
	Created(c, doc)
}

// GET /projects/:id/documents
func (h *DocumentHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	list, total, err := h.documentService.List(parseID(c.Param("id")), page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, list, total, page, pageSize)
}

// GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documentService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "document not found")
		return
	}
	Success(c, doc)
}

// GET /documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, obj, err := h.documentService.Open(c.Request.Context(), parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "document not found")
		return
	}
	defer obj.Close()
	c.DataFromReader(http.StatusOK, obj.Size, "application/pdf", obj, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name + ".pdf"}),
	})
}

// DELETE /documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	doc, err := h.documentService.GetByID(id)
	if err != nil {
		respondError(c, err, "document not found")
		return
	}
	if err := h.documentService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "document not found")
		return
	}
	h.record(c, ptr(doc.ProjectID), "document.deleted", "document", id, doc.Name, nil)
	Success(c, nil)
}
