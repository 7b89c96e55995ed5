package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
)

type InputDataHandler struct {
	recorder
	inputService *service.InputDataService
	maxUpload    int64
}

func NewInputDataHandler(inputService *service.InputDataService, activity *service.ActivityService, maxUploadMB int64) *InputDataHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 100
	}
	return &InputDataHandler{recorder: recorder{activity}, inputService: inputService, maxUpload: maxUploadMB << 20}
}

// POST /projects/:id/input-data
func (h *InputDataHandler) Upload(c *gin.Context) {
	projectID := parseID(c.Param("id"))
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, 41301, fmt.Sprintf("upload exceeds %d MB", h.maxUpload>>20))
			return
		}
		BadRequest(c, 40001, "file is required")
		return
	}

	up := service.Upload{
		ProjectID:   projectID,
		UploadedBy:  middleware.GetCurrentUserID(c),
		Filename:    filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
	}
	if name := c.PostForm("name"); name != "" {
		up.Filename = name
	}
	if up.ContentType == "" || up.ContentType == "application/octet-stream" {
		if ct := mime.TypeByExtension(filepath.Ext(fh.Filename)); ct != "" {
			up.ContentType = ct
		} else if up.ContentType == "" {
			up.ContentType = "application/octet-stream"
		}
	}
	if raw := c.PostForm("transcript"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &up.Transcript); err != nil {
			BadRequest(c, 40001, "transcript must be a JSON array of {start,end,text}")
			return
		}
	}
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &up.Metadata); err != nil {
			BadRequest(c, 40001, "metadata must be a JSON object")
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, err, "")
		return
	}
	defer f.Close()
	up.Body = f

	data, err := h.inputService.Upload(c.Request.Context(), up)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	h.record(c, ptr(projectID), "input_data.uploaded", "input_data", data.ID, data.Name,
		model.JSONMap{"kind": data.Kind, "size_bytes": data.SizeBytes})
	Created(c, data)
}

// GET /projects/:id/input-data
func (h *InputDataHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	list, total, err := h.inputService.List(parseID(c.Param("id")), c.Query("kind"), c.Query("keyword"), page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, list, total, page, pageSize)
}

// GET /input-data/:id
func (h *InputDataHandler) Get(c *gin.Context) {
	data, err := h.inputService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "input data not found")
		return
	}
	Success(c, data)
}

// GET /input-data/:id/content
func (h *InputDataHandler) Content(c *gin.Context) {
	data, obj, err := h.inputService.Open(c.Request.Context(), parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "input data not found")
		return
	}
	defer obj.Close()
	contentType := data.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, obj, map[string]string{
		"Content-Disposition": mime.FormatMediaType("inline", map[string]string{"filename": data.Name}),
	})
}

// PUT /input-data/:id
func (h *InputDataHandler) Update(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Name          *string           `json:"name" binding:"omitempty,min=1,max=255"`
		ExtractedText *string           `json:"extracted_text"`
		Transcript    *model.Transcript `json:"transcript"`
		Metadata      *model.JSONMap    `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ExtractedText != nil {
		updates["extracted_text"] = *req.ExtractedText
	}
	if req.Transcript != nil {
		updates["transcript"] = *req.Transcript
	}
	if req.Metadata != nil {
		updates["metadata"] = *req.Metadata
	}

	data, err := h.inputService.Update(id, updates)
	if err != nil {
		respondError(c, err, "input data not found")
		return
	}
	h.record(c, ptr(data.ProjectID), "input_data.updated", "input_data", id, data.Name, nil)
	Success(c, data)
}

// DELETE /input-data/:id
func (h *InputDataHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	data, err := h.inputService.GetByID(id)
	if err != nil {
		respondError(c, err, "input data not found")
		return
	}
	if err := h.inputService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "input data not found")
		return
	}
	h.record(c, ptr(data.ProjectID), "input_data.deleted", "input_data", id, data.Name, nil)
	Success(c, nil)
}
