package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/jobs"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/notify"
	"github.com/reqforge/backend/internal/review"
	"github.com/reqforge/backend/internal/workflow"
	"github.com/reqforge/backend/pkg/llmjson"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GenerationConfig struct {
	ContradictionThreshold float64
	MaxWorkers             int
	ReviewModel            string
}

// GenerationService drives every LLM-backed operation and persists the results.
type GenerationService struct {
	db        *gorm.DB
	providers ai.Providers
	reqs      *RequirementService
	tasks     *TaskService
	workflows *WorkflowService
	activity  *ActivityService
	pool      *jobs.Pool
	notifier  notify.Notifier
	cfg       GenerationConfig
}

func NewGenerationService(db *gorm.DB, providers ai.Providers, activity *ActivityService, pool *jobs.Pool,
	notifier notify.Notifier, cfg GenerationConfig) *GenerationService {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &GenerationService{
		db:        db,
		providers: providers,
		reqs:      NewRequirementService(db),
		tasks:     NewTaskService(db),
		workflows: NewWorkflowService(db),
		activity:  activity,
		pool:      pool,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func briefOf(r *model.Requirement) ai.RequirementBrief {
	return ai.RequirementBrief{
		Code:        r.Code,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Priority:    r.Priority,
		Criteria:    r.AcceptanceCriteria,
	}
}

// decode parses a model reply; unparseable output counts as a provider failure.
func decode(provider, output string, v any) error {
	if err := llmjson.Decode(output, v); err != nil {
		return &ai.ProviderError{Provider: provider, Err: err}
	}
	return nil
}

func (s *GenerationService) criteriaFor(ctx context.Context, gen ai.Generator, req *model.Requirement) (model.AcceptanceCriteria, error) {
	out, err := gen.Generate(ctx, ai.SystemAnalyst, ai.BuildAcceptanceCriteriaPrompt(briefOf(req)))
	if err != nil {
		return nil, err
	}
	var criteria model.AcceptanceCriteria
	if err := decode(ai.ProviderOf(gen), out, &criteria); err != nil {
		return nil, err
	}
	for i := range criteria {
		if criteria[i].ID == "" {
			criteria[i].ID = fmt.Sprintf("AC-%d", i+1)
		}
		if criteria[i].Status == "" {
			criteria[i].Status = "pending"
		}
	}
	return criteria, nil
}

func (s *GenerationService) GenerateAcceptanceCriteria(ctx context.Context, requirementID, userID uint) (*model.Requirement, error) {
	req, err := s.reqs.GetByID(requirementID)
	if err != nil {
		return nil, err
	}
	gen, err := s.providers.Author(ctx, userID)
	if err != nil {
		return nil, err
	}
	criteria, err := s.criteriaFor(ctx, gen, req)
	if err != nil {
		return nil, err
	}
	return s.reqs.SetAcceptanceCriteria(requirementID, criteria)
}

func (s *GenerationService) GenerateTasks(ctx context.Context, requirementID, userID uint) (*model.Requirement, []model.ImplementationTask, error) {
	req, err := s.reqs.GetByID(requirementID)
	if err != nil {
		return nil, nil, err
	}
	gen, err := s.providers.Author(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	out, err := gen.Generate(ctx, ai.SystemAnalyst, ai.BuildTasksPrompt(briefOf(req)))
	if err != nil {
		return nil, nil, err
	}
	var generated []ai.GeneratedTask
	if err := decode(ai.ProviderOf(gen), out, &generated); err != nil {
		return nil, nil, err
	}

	tasks := make([]*model.ImplementationTask, 0, len(generated))
	for _, g := range generated {
		if strings.TrimSpace(g.Title) == "" {
			continue
		}
		t := &model.ImplementationTask{
			RequirementID:  req.ID,
			Title:          g.Title,
			Description:    g.Description,
			System:         g.System,
			Priority:       normalizePriority(g.Priority),
			EstimatedHours: g.EstimatedHours,
			Status:         model.TaskStatusTodo,
		}
		var effortHours float64
		for _, e := range g.RoleEfforts {
			if e.Role == "" || e.Hours <= 0 {
				continue
			}
			t.RoleEfforts = append(t.RoleEfforts, model.RoleEffort{Role: strings.ToLower(e.Role), Hours: e.Hours, HourlyRate: e.HourlyRate})
			effortHours += e.Hours
		}
		if t.EstimatedHours <= 0 {
			t.EstimatedHours = effortHours
		}
		tasks = append(tasks, t)
	}
	if err := s.tasks.CreateBatch(tasks); err != nil {
		return nil, nil, err
	}
	created := make([]model.ImplementationTask, len(tasks))
	for i, t := range tasks {
		created[i] = *t
	}
	return req, created, nil
}

func normalizePriority(p string) string {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case "low", "medium", "high", "critical":
		return p
	default:
		return "medium"
	}
}

func (s *GenerationService) GenerateWorkflow(ctx context.Context, requirementID, userID uint) (*model.Workflow, error) {
	req, err := s.reqs.GetByID(requirementID)
	if err != nil {
		return nil, err
	}
	gen, err := s.providers.Author(ctx, userID)
	if err != nil {
		return nil, err
	}
	out, err := gen.Generate(ctx, ai.SystemAnalyst, ai.BuildWorkflowPrompt(briefOf(req)))
	if err != nil {
		return nil, err
	}
	var g ai.GeneratedWorkflow
	if err := decode(ai.ProviderOf(gen), out, &g); err != nil {
		return nil, err
	}
	nodes, edges := sanitizeGraph(g.Nodes, g.Edges)
	if len(nodes) == 0 {
		return nil, &ai.ProviderError{Provider: ai.ProviderOf(gen), Err: errors.New("workflow has no nodes")}
	}

	name := strings.TrimSpace(g.Name)
	if name == "" {
		name = req.Code + " workflow"
	}
	rid := req.ID
	wf := &model.Workflow{
		ProjectID:     req.ProjectID,
		RequirementID: &rid,
		Name:          name,
		Description:   g.Description,
		Nodes:         datatypes.JSONSlice[model.WorkflowNode](workflow.Layout(nodes, edges)),
		Edges:         datatypes.JSONSlice[model.WorkflowEdge](edges),
		Source:        model.WorkflowSourceAI,
		CreatedBy:     userID,
	}
	if err := s.workflows.Create(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// sanitizeGraph drops duplicate or blank nodes, coerces unknown node types to
// task, and drops edges to unknown nodes.
func sanitizeGraph(nodes []model.WorkflowNode, edges []model.WorkflowEdge) ([]model.WorkflowNode, []model.WorkflowEdge) {
	seen := make(map[string]bool, len(nodes))
	outNodes := make([]model.WorkflowNode, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		switch n.Type {
		case model.NodeTypeStart, model.NodeTypeEnd, model.NodeTypeTask, model.NodeTypeGateway, model.NodeTypeEvent:
		default:
			n.Type = model.NodeTypeTask
		}
		outNodes = append(outNodes, n)
	}
	outEdges := make([]model.WorkflowEdge, 0, len(edges))
	for _, e := range edges {
		if seen[e.Source] && seen[e.Target] {
			outEdges = append(outEdges, e)
		}
	}
	return outNodes, outEdges
}

func (s *GenerationService) ExpertReview(ctx context.Context, requirementID, userID uint) (*model.Requirement, error) {
	req, err := s.reqs.GetByID(requirementID)
	if err != nil {
		return nil, err
	}
	gen, err := s.providers.Reviewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	result, err := review.NewReviewer(gen, s.cfg.ReviewModel).Run(ctx, briefOf(req))
	if err != nil {
		return nil, err
	}
	return s.reqs.SetExpertReview(requirementID, result)
}

type Contradiction struct {
	RequirementID uint    `json:"requirement_id"`
	Code          string  `json:"code"`
	Title         string  `json:"title"`
	Score         float64 `json:"score"`
}

func requirementText(r *model.Requirement) string {
	if r.Description == "" {
		return r.Title
	}
	return r.Title + ". " + r.Description
}

// Contradictions scores the requirement against every other one in its
// project and returns those at or above the threshold, highest first.
func (s *GenerationService) Contradictions(ctx context.Context, requirementID, userID uint) ([]Contradiction, error) {
	req, err := s.reqs.GetByID(requirementID)
	if err != nil {
		return nil, err
	}
	scorer, err := s.providers.Scorer(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.reqs.ListAll(req.ProjectID)
	if err != nil {
		return nil, err
	}
	others := make([]model.Requirement, 0, len(all))
	for _, r := range all {
		if r.ID != req.ID {
			others = append(others, r)
		}
	}

	premise := requirementText(req)
	scores := make([]float64, len(others))
	err = jobs.ForEach(ctx, s.cfg.MaxWorkers, others, func(ctx context.Context, i int, other model.Requirement) error {
		score, err := scorer.Contradiction(ctx, premise, requirementText(&other))
		scores[i] = score
		return err
	})
	if err != nil {
		return nil, err
	}

	results := []Contradiction{}
	for i, other := range others {
		if scores[i] >= s.cfg.ContradictionThreshold {
			results = append(results, Contradiction{RequirementID: other.ID, Code: other.Code, Title: other.Title, Score: scores[i]})
		}
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	return results, nil
}

// DeriveRequirements splits the input's text into chunks, asks the author
// model for requirements in each, and stores them as drafts linked to the input.
func (s *GenerationService) DeriveRequirements(ctx context.Context, inputDataID, userID uint) ([]model.Requirement, error) {
	var input model.InputData
	if err := s.db.First(&input, inputDataID).Error; err != nil {
		return nil, err
	}
	text := input.SourceText()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("40001:input data has no extracted text or transcript")
	}
	gen, err := s.providers.Author(ctx, userID)
	if err != nil {
		return nil, err
	}
	chunks, err := ai.SplitSource(text)
	if err != nil {
		return nil, fmt.Errorf("split source: %w", err)
	}

	perChunk := make([][]ai.DerivedRequirement, len(chunks))
	err = jobs.ForEach(ctx, s.cfg.MaxWorkers, chunks, func(ctx context.Context, i int, chunk string) error {
		out, err := gen.Generate(ctx, ai.SystemAnalyst, ai.BuildDerivePrompt(input.Name, chunk, i+1, len(chunks)))
		if err != nil {
			return err
		}
		return decode(ai.ProviderOf(gen), out, &perChunk[i])
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	created := []model.Requirement{}
	inputID := input.ID
	for _, derived := range perChunk {
		for _, d := range derived {
			key := strings.ToLower(strings.TrimSpace(d.Title))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			req := model.Requirement{
				ProjectID:   input.ProjectID,
				InputDataID: &inputID,
				Title:       strings.TrimSpace(d.Title),
				Description: d.Description,
				Category:    d.Category,
				Priority:    normalizePriority(d.Priority),
				Status:      model.RequirementStatusDraft,
				CreatorID:   userID,
			}
			if err := s.reqs.Create(&req); err != nil {
				return created, err
			}
			created = append(created, req)
		}
	}
	if input.Status != model.InputStatusProcessed {
		if err := s.db.Model(&input).Update("status", model.InputStatusProcessed).Error; err != nil {
			zap.L().Warn("mark input processed", zap.Uint("input_id", input.ID), zap.Error(err))
		}
	}
	return created, nil
}

// QueueAcceptanceCriteria schedules criteria generation for the project's
// requirements on the job pool and returns how many were queued. With
// onlyMissing set, requirements that already have criteria are skipped.
func (s *GenerationService) QueueAcceptanceCriteria(ctx context.Context, projectID uint, user *model.User, onlyMissing bool) (int, error) {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		return 0, err
	}
	gen, err := s.providers.Author(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	reqs, err := s.reqs.ListAll(projectID)
	if err != nil {
		return 0, err
	}
	var targets []model.Requirement
	for _, r := range reqs {
		if onlyMissing && len(r.AcceptanceCriteria) > 0 {
			continue
		}
		targets = append(targets, r)
	}
	if len(targets) == 0 {
		return 0, nil
	}

	b := &batch{remaining: int64(len(targets))}
	b.done = func() {
		succeeded, failed := int(b.succeeded.Load()), int(b.failed.Load())
		zap.L().Info("acceptance criteria batch finished", zap.Uint("project_id", projectID),
			zap.Int("succeeded", succeeded), zap.Int("failed", failed))
		pid := projectID
		s.activity.Record(context.Background(), &model.Activity{
			UserID:      user.ID,
			ProjectID:   &pid,
			Action:      "acceptance_criteria.batch_completed",
			EntityType:  "project",
			EntityID:    projectID,
			Description: fmt.Sprintf("generated acceptance criteria for %d requirements, %d failed", succeeded, failed),
			Metadata:    model.JSONMap{"succeeded": succeeded, "failed": failed},
		})
		event := notify.BatchGenerationCompletedEvent{
			ProjectID:   projectID,
			ProjectName: project.Name,
			Succeeded:   succeeded,
			Failed:      failed,
			RequestedBy: user.Name,
		}
		notify.Async(func(ctx context.Context) error {
			return s.notifier.NotifyBatchGenerationCompleted(ctx, event)
		})
	}

	queued := 0
	for i := range targets {
		req := targets[i]
		err := s.pool.Submit(func(ctx context.Context) {
			defer b.finish()
			criteria, err := s.criteriaFor(ctx, gen, &req)
			if err == nil {
				_, err = s.reqs.SetAcceptanceCriteria(req.ID, criteria)
			}
			if err != nil {
				b.failed.Add(1)
				zap.L().Warn("batch acceptance criteria", zap.Uint("requirement_id", req.ID), zap.Error(err))
				return
			}
			b.succeeded.Add(1)
		})
		if err != nil {
			if queued == 0 {
				return 0, fmt.Errorf("50301:generation queue is full")
			}
			// Whatever could not be queued counts as failed.
			for j := i; j < len(targets); j++ {
				b.failed.Add(1)
				b.finish()
			}
			break
		}
		queued++
	}
	return queued, nil
}

type batch struct {
	remaining int64
	succeeded atomic.Int64
	failed    atomic.Int64
	once      sync.Once
	done      func()
}

func (b *batch) finish() {
	if atomic.AddInt64(&b.remaining, -1) == 0 {
		b.once.Do(b.done)
	}
}
