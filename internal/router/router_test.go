package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/config"
	"github.com/reqforge/backend/internal/database"
	"github.com/reqforge/backend/internal/handler"
	"github.com/reqforge/backend/internal/jobs"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/notify"
	"github.com/reqforge/backend/internal/service"
	"github.com/reqforge/backend/internal/session"
	"github.com/reqforge/backend/internal/sse"
	"github.com/reqforge/backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	t      *testing.T
	engine *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	sessions := session.NewStore(rdb)
	pool := jobs.NewPool(1, 10)
	t.Cleanup(pool.Shutdown)
	notifier := notify.NoopNotifier{}

	settingService := service.NewSettingService(db, "router-test-key")
	providers := ai.NewFactory(config.AIConfig{}, settingService)
	activityService := service.NewActivityService(db, sse.NewHub(rdb))
	authService := service.NewAuthService(db, sessions, testSecret, 1)
	projectService := service.NewProjectService(db, store)
	reqService := service.NewRequirementService(db)
	taskService := service.NewTaskService(db)
	genService := service.NewGenerationService(db, providers, activityService, pool, notifier, service.GenerationConfig{})

	r := gin.New()
	Setup(r, Deps{
		DB:           db,
		Sessions:     sessions,
		Logger:       zap.NewNop(),
		Auth:         middleware.AuthConfig{JWTSecret: testSecret, CookieName: "reqforge_session"},
		AllowOrigins: []string{"http://localhost:5173"},

		HealthHandler:      handler.NewHealthHandler(db, rdb),
		AuthHandler:        handler.NewAuthHandler(authService, activityService, handler.CookieConfig{Name: "reqforge_session"}),
		UserHandler:        handler.NewUserHandler(authService, activityService),
		InviteHandler:      handler.NewInviteHandler(service.NewInviteService(db, 72), activityService, notifier),
		CustomerHandler:    handler.NewCustomerHandler(service.NewCustomerService(db), activityService),
		ProjectHandler:     handler.NewProjectHandler(projectService, taskService, activityService),
		InputDataHandler:   handler.NewInputDataHandler(service.NewInputDataService(db, store), activityService, 1),
		RequirementHandler: handler.NewRequirementHandler(reqService, activityService, notifier),
		GenerationHandler:  handler.NewGenerationHandler(genService, activityService),
		TaskHandler:        handler.NewTaskHandler(taskService, reqService, activityService),
		ActivityHandler:    handler.NewActivityHandler(activityService, projectService),
		WorkflowHandler:    handler.NewWorkflowHandler(service.NewWorkflowService(db), activityService),
		SearchHandler:      handler.NewSearchHandler(service.NewSearchService(db), service.NewSchemaService(db)),
		TemplateHandler:    handler.NewTemplateHandler(service.NewTemplateService(db, store), activityService),
		DocumentHandler:    handler.NewDocumentHandler(service.NewDocumentService(db, store, providers), activityService),
		SettingHandler:     handler.NewSettingHandler(settingService),
	})
	return &server{t: t, engine: r}
}

func (s *server) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, status, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(s.t, data.Token)
	return data.Token
}

func (s *server) bootstrapAdmin() string {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "admin@example.com", "name": "Admin", "password": "admin-pass-1",
	})
	require.Equal(s.t, http.StatusCreated, status, env.Message)
	return s.login("admin@example.com", "admin-pass-1")
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestPublicEndpoints(t *testing.T) {
	s := newServer(t)

	status, env := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)

	status, env = s.do(http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40101, env.Code)

	status, env = s.do(http.MethodGet, "/api/projects", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40103, env.Code)

	status, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCRUDContract(t *testing.T) {
	s := newServer(t)
	admin := s.bootstrapAdmin()

	status, env := s.do(http.MethodPost, "/api/customers", admin, gin.H{"name": "Acme", "email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40001, env.Code)
	var verr struct {
		Errors []handler.FieldError `json:"errors"`
	}
	decodeData(t, env, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "email", verr.Errors[0].Field)

	status, env = s.do(http.MethodPost, "/api/projects", admin, gin.H{"name": "Billing"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var project struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	decodeData(t, env, &project)
	assert.Equal(t, "Billing", project.Name)

	status, env = s.do(http.MethodPost, "/api/projects", admin, gin.H{"name": "Billing"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40005, env.Code)

	status, env = s.do(http.MethodGet, "/api/projects/9999", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
	assert.Equal(t, "project not found", env.Message)

	path := fmt.Sprintf("/api/projects/%d/requirements", project.ID)
	status, env = s.do(http.MethodPost, path, admin, gin.H{"title": "Refunds", "priority": "urgent"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(http.MethodPost, path, admin, gin.H{"title": "Refunds", "priority": "high"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var requirement struct {
		ID   uint   `json:"id"`
		Code string `json:"code"`
	}
	decodeData(t, env, &requirement)
	assert.Equal(t, "REQ-001", requirement.Code)

	status, env = s.do(http.MethodPut, fmt.Sprintf("/api/requirements/%d", requirement.ID), admin, gin.H{"status": "approved"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/activities", project.ID), admin, nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Total int64 `json:"total"`
		List  []struct {
			Action string `json:"action"`
		} `json:"list"`
	}
	decodeData(t, env, &page)
	require.NotEmpty(t, page.List)
	assert.Equal(t, "requirement.status_changed", page.List[0].Action)

	// No API key is configured anywhere.
	status, env = s.do(http.MethodPost, fmt.Sprintf("/api/requirements/%d/acceptance-criteria/generate", requirement.ID), admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40010, env.Code)

	status, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/projects/%d", project.ID), admin, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodGet, fmt.Sprintf("/api/requirements/%d", requirement.ID), admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRolesAndSessions(t *testing.T) {
	s := newServer(t)
	admin := s.bootstrapAdmin()

	status, env := s.do(http.MethodPost, "/api/invites", admin, gin.H{"email": "ana@example.com", "role": "analyst"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var invite struct {
		Token string `json:"token"`
	}
	decodeData(t, env, &invite)

	status, _ = s.do(http.MethodGet, "/api/invites/"+invite.Token, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ana@example.com", "name": "Ana", "password": "analyst-pass", "invite_token": invite.Token,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	analyst := s.login("ana@example.com", "analyst-pass")

	status, env = s.do(http.MethodPost, "/api/projects", analyst, gin.H{"name": "Shadow"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, 40301, env.Code)

	status, _ = s.do(http.MethodGet, "/api/users", analyst, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodGet, "/api/projects", analyst, nil)
	assert.Equal(t, http.StatusOK, status)

	// A second login replaces the first session.
	newer := s.login("admin@example.com", "admin-pass-1")
	status, env = s.do(http.MethodGet, "/api/auth/me", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40105, env.Code)

	status, _ = s.do(http.MethodGet, "/api/users", newer, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/auth/logout", newer, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(http.MethodGet, "/api/auth/me", newer, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40105, env.Code)
}

func (s *server) createProject(token, name string) uint {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/projects", token, gin.H{"name": name})
	require.Equal(s.t, http.StatusCreated, status, env.Message)
	var p struct {
		ID uint `json:"id"`
	}
	decodeData(s.t, env, &p)
	return p.ID
}

func (s *server) createRequirement(token string, projectID uint, title string) uint {
	s.t.Helper()
	status, env := s.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/requirements", projectID), token, gin.H{"title": title})
	require.Equal(s.t, http.StatusCreated, status, env.Message)
	var r struct {
		ID uint `json:"id"`
	}
	decodeData(s.t, env, &r)
	return r.ID
}

type streamEvent struct {
	id     string
	action string
}

// readEvents parses an event stream into events until the body closes.
func readEvents(body *bufio.Scanner, out chan<- streamEvent) {
	defer close(out)
	var ev streamEvent
	for body.Scan() {
		line := body.Text()
		switch {
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			var a struct {
				Action string `json:"action"`
			}
			_ = json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &a)
			ev.action = a.Action
		case line == "" && ev.action != "":
			out <- ev
			ev = streamEvent{}
		}
	}
}

func TestActivityStream_ResumesAfterLastEventID(t *testing.T) {
	s := newServer(t)
	admin := s.bootstrapAdmin()

	projectID := s.createProject(admin, "Billing") // event 1
	for _, title := range []string{"Invoices", "Refunds", "Reminders"} {
		s.createRequirement(admin, projectID, title) // events 2..4
	}

	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/activities/stream", ts.URL, projectID), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+admin)
	req.Header.Set("Last-Event-ID", "2")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan streamEvent, 16)
	go readEvents(bufio.NewScanner(resp.Body), events)

	next := func() streamEvent {
		t.Helper()
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed early")
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
		return streamEvent{}
	}

	assert.Equal(t, streamEvent{id: "3", action: "requirement.created"}, next())
	assert.Equal(t, streamEvent{id: "4", action: "requirement.created"}, next())

	s.createRequirement(admin, projectID, "Disputes")
	assert.Equal(t, streamEvent{id: "5", action: "requirement.created"}, next())

	status, _ := s.do(http.MethodGet, "/api/projects/9999/activities/stream", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestInputDataUpload_RejectsOversizedFile(t *testing.T) {
	s := newServer(t)
	admin := s.bootstrapAdmin()
	projectID := s.createProject(admin, "Billing")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("a"), 1<<20+1024))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/projects/%d/input-data", projectID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 41301, env.Code)

	status, env := s.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/input-data", projectID), admin, nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Total int64 `json:"total"`
	}
	decodeData(t, env, &page)
	assert.Zero(t, page.Total)
}

func TestProjectStatsAndRoleEffort(t *testing.T) {
	s := newServer(t)
	admin := s.bootstrapAdmin()
	projectID := s.createProject(admin, "Billing")
	reqID := s.createRequirement(admin, projectID, "Invoices")
	s.createRequirement(admin, projectID, "Refunds")

	status, env := s.do(http.MethodPost, fmt.Sprintf("/api/requirements/%d/tasks", reqID), admin, gin.H{
		"title":        "API", "estimated_hours": 10,
		"role_efforts": []gin.H{{"role": "backend", "hours": 6, "hourly_rate": 100}, {"role": "qa", "hours": 2, "hourly_rate": 50}},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	status, env = s.do(http.MethodPost, fmt.Sprintf("/api/requirements/%d/tasks", reqID), admin, gin.H{
		"title":        "UI", "status": "done", "estimated_hours": 4,
		"role_efforts": []gin.H{{"role": "backend", "hours": 1, "hourly_rate": 100}},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/stats", projectID), admin, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var stats struct {
		Requirements   int64            `json:"requirements"`
		Tasks          int64            `json:"tasks"`
		TasksByStatus  map[string]int64 `json:"tasks_by_status"`
		EstimatedHours float64          `json:"estimated_hours"`
		EffortHours    float64          `json:"effort_hours"`
		EffortCost     float64          `json:"effort_cost"`
	}
	decodeData(t, env, &stats)
	assert.EqualValues(t, 2, stats.Requirements)
	assert.EqualValues(t, 2, stats.Tasks)
	assert.EqualValues(t, 1, stats.TasksByStatus["done"])
	assert.InDelta(t, 14, stats.EstimatedHours, 0.001)
	assert.InDelta(t, 9, stats.EffortHours, 0.001)
	assert.InDelta(t, 800, stats.EffortCost, 0.001)

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/role-effort", projectID), admin, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var effort struct {
		Roles []struct {
			Role  string  `json:"role"`
			Hours float64 `json:"hours"`
			Cost  float64 `json:"cost"`
		} `json:"roles"`
		TotalHours float64 `json:"total_hours"`
		TotalCost  float64 `json:"total_cost"`
	}
	decodeData(t, env, &effort)
	require.Len(t, effort.Roles, 2)
	assert.Equal(t, "backend", effort.Roles[0].Role)
	assert.InDelta(t, 700, effort.Roles[0].Cost, 0.001)
	assert.InDelta(t, 9, effort.TotalHours, 0.001)
	assert.InDelta(t, 800, effort.TotalCost, 0.001)

	status, _ = s.do(http.MethodGet, "/api/projects/9999/stats", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodGet, "/api/projects/9999/role-effort", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
