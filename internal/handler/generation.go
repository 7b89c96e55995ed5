package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
	"go.uber.org/zap"
)

// GenerationHandler serves the AI-backed endpoints.
type GenerationHandler struct {
	recorder
	genService *service.GenerationService
}

func NewGenerationHandler(genService *service.GenerationService, activity *service.ActivityService) *GenerationHandler {
	return &GenerationHandler{recorder: recorder{activity}, genService: genService}
}

// POST /requirements/:id/acceptance-criteria/generate
func (h *GenerationHandler) AcceptanceCriteria(c *gin.Context) {
	id := parseID(c.Param("id"))
	r, err := h.genService.GenerateAcceptanceCriteria(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	h.record(c, ptr(r.ProjectID), "requirement.criteria_generated", "requirement", id,
		fmt.Sprintf("generated %d acceptance criteria for %s", len(r.AcceptanceCriteria), r.Code), nil)
	Success(c, r)
}

// POST /requirements/:id/tasks/generate
func (h *GenerationHandler) Tasks(c *gin.Context) {
	id := parseID(c.Param("id"))
	r, tasks, err := h.genService.GenerateTasks(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	h.record(c, ptr(r.ProjectID), "task.generated", "requirement", id, fmt.Sprintf("generated tasks for %s", r.Code),
		model.JSONMap{"tasks": len(tasks)})
	Created(c, tasks)
}

// POST /requirements/:id/workflows/generate
func (h *GenerationHandler) Workflow(c *gin.Context) {
	id := parseID(c.Param("id"))
	wf, err := h.genService.GenerateWorkflow(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	h.record(c, ptr(wf.ProjectID), "workflow.generated", "workflow", wf.ID, wf.Name, nil)
	Created(c, wf)
}

// POST /requirements/:id/expert-review
func (h *GenerationHandler) ExpertReview(c *gin.Context) {
	id := parseID(c.Param("id"))
	r, err := h.genService.ExpertReview(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	meta := model.JSONMap{}
	if r.ExpertReview.Data != nil {
		meta["rating"] = r.ExpertReview.Data.Rating
	}
	h.record(c, ptr(r.ProjectID), "requirement.reviewed", "requirement", id, r.Code+" expert review", meta)
	Success(c, r)
}

// POST /requirements/:id/contradictions
func (h *GenerationHandler) Contradictions(c *gin.Context) {
	id := parseID(c.Param("id"))
	results, err := h.genService.Contradictions(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "requirement not found")
		return
	}
	Success(c, gin.H{"requirement_id": id, "contradictions": results})
}

// POST /input-data/:id/derive-requirements
func (h *GenerationHandler) DeriveRequirements(c *gin.Context) {
	id := parseID(c.Param("id"))
	reqs, err := h.genService.DeriveRequirements(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		if len(reqs) > 0 {
			zap.L().Warn("derivation stopped early", zap.Uint("input_data_id", id), zap.Int("created", len(reqs)), zap.Error(err))
		}
		respondError(c, err, "input data not found")
		return
	}
	if len(reqs) > 0 {
		h.record(c, ptr(reqs[0].ProjectID), "requirement.derived", "input_data", id,
			fmt.Sprintf("derived %d requirements", len(reqs)), model.JSONMap{"count": len(reqs)})
	}
	Created(c, reqs)
}

// POST /projects/:id/acceptance-criteria/generate
func (h *GenerationHandler) BatchAcceptanceCriteria(c *gin.Context) {
	projectID := parseID(c.Param("id"))
	onlyMissing := c.DefaultQuery("only_missing", "true") != "false"
	queued, err := h.genService.QueueAcceptanceCriteria(c.Request.Context(), projectID, middleware.GetCurrentUser(c), onlyMissing)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	h.record(c, ptr(projectID), "acceptance_criteria.batch_queued", "project", projectID,
		fmt.Sprintf("queued %d requirements", queued), model.JSONMap{"queued": queued})
	Accepted(c, gin.H{"queued": queued})
}
