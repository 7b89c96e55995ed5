package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
	"github.com/reqforge/backend/internal/sse"
)

const keepAliveInterval = 30 * time.Second

// recorder writes the audit row for a mutating request on behalf of the caller.
type recorder struct {
	activity *service.ActivityService
}

func (r recorder) record(c *gin.Context, projectID *uint, action, entityType string, entityID uint, description string, meta model.JSONMap) {
	if r.activity == nil {
		return
	}
	r.activity.Record(c.Request.Context(), &model.Activity{
		UserID:      middleware.GetCurrentUserID(c),
		ProjectID:   projectID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		Metadata:    meta,
	})
}

func ptr(id uint) *uint { return &id }

type ActivityHandler struct {
	activityService *service.ActivityService
	projectService  *service.ProjectService
}

func NewActivityHandler(activityService *service.ActivityService, projectService *service.ProjectService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, projectService: projectService}
}

func parseTime(c *gin.Context, key string) *time.Time {
	s := c.Query(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func (h *ActivityHandler) filter(c *gin.Context) service.ActivityFilter {
	return service.ActivityFilter{
		ProjectID:  optionalID(c, "project_id"),
		UserID:     optionalID(c, "user_id"),
		EntityType: c.Query("entity_type"),
		EntityID:   optionalID(c, "entity_id"),
		Action:     c.Query("action"),
		Since:      parseTime(c, "since"),
		Until:      parseTime(c, "until"),
	}
}

// GET /activities
func (h *ActivityHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	list, total, err := h.activityService.List(h.filter(c), page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, list, total, page, pageSize)
}

// GET /projects/:id/activities
func (h *ActivityHandler) ListByProject(c *gin.Context) {
	projectID := parseID(c.Param("id"))
	if err := h.projectService.Exists(projectID); err != nil {
		respondError(c, err, "project not found")
		return
	}
	page, pageSize := parsePage(c)
	f := h.filter(c)
	f.ProjectID = &projectID
	list, total, err := h.activityService.List(f, page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, list, total, page, pageSize)
}

// GET /projects/:id/activities/stream
func (h *ActivityHandler) Stream(c *gin.Context) {
	projectID := parseID(c.Param("id"))
	if err := h.projectService.Exists(projectID); err != nil {
		respondError(c, err, "project not found")
		return
	}
	hub := h.activityService.Hub()

	// Subscribe before replaying so nothing published in between is lost.
	events, unsubscribe := hub.Subscribe(projectID)
	defer unsubscribe()

	lastID := sse.ParseLastEventID(c.GetHeader("Last-Event-ID"))
	if lastID == 0 {
		lastID = sse.ParseLastEventID(c.Query("last_event_id"))
	}
	backlog, err := hub.ReplayAfter(c.Request.Context(), projectID, lastID)
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Live events already covered by the backlog are skipped. Only the backlog
	// moves this mark; unsequenced events (ID 0) always go out.
	replayed := lastID
	for _, ev := range backlog {
		writeEvent(c.Writer, ev)
		if ev.ID > replayed {
			replayed = ev.ID
		}
	}
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if ev.ID != 0 && ev.ID <= replayed {
				return true
			}
			writeEvent(w, ev)
			return true
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			return true
		}
	})
}

func writeEvent(w io.Writer, ev sse.Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
}
