package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/jobs"
	"github.com/reqforge/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newGeneration(env *testEnv, providers *fakeProviders, pool *jobs.Pool) *GenerationService {
	return NewGenerationService(env.db, providers, NewActivityService(env.db, env.hub), pool, nil, GenerationConfig{
		ContradictionThreshold: 0.5,
		MaxWorkers:             2,
		ReviewModel:            "gemini-1.5-pro",
	})
}

func TestGeneration_AcceptanceCriteria(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	u := env.user(t, "analyst@example.com", model.RoleAnalyst)
	p := env.project(t, u, "Billing")
	r := env.requirement(t, p, u, "Refunds")

	author := replyWith("```json\n" + `[
		{"description": "Refund is issued within one day"},
		{"id": "AC-9", "description": "Customer is notified", "status": "passed",
		 "gherkin": {"scenario": "notify", "given": ["a refund"], "when": ["it is issued"], "then": ["an email is sent"]}}
	]` + "\n```")
	gen := newGeneration(env, &fakeProviders{author: author}, nil)

	updated, err := gen.GenerateAcceptanceCriteria(ctx, r.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, updated.AcceptanceCriteria, 2)
	assert.Equal(t, "AC-1", updated.AcceptanceCriteria[0].ID)
	assert.Equal(t, "pending", updated.AcceptanceCriteria[0].Status)
	assert.Equal(t, "AC-9", updated.AcceptanceCriteria[1].ID)
	assert.Equal(t, "passed", updated.AcceptanceCriteria[1].Status)
	require.NotNil(t, updated.AcceptanceCriteria[1].Gherkin)
	assert.Equal(t, []string{"an email is sent"}, updated.AcceptanceCriteria[1].Gherkin.Then)
	assert.Contains(t, author.prompts[0], "Refunds")

	_, err = newGeneration(env, &fakeProviders{author: replyWith("not json")}, nil).GenerateAcceptanceCriteria(ctx, r.ID, u.ID)
	assert.True(t, hasCode(err, "50201"))
	assert.Contains(t, err.Error(), "claude request failed")

	openai := replyWith("not json")
	openai.provider = ai.ProviderOpenAI
	_, err = newGeneration(env, &fakeProviders{author: openai}, nil).GenerateAcceptanceCriteria(ctx, r.ID, u.ID)
	assert.True(t, hasCode(err, "50201"))
	assert.Contains(t, err.Error(), "openai request failed")

	_, err = newGeneration(env, &fakeProviders{}, nil).GenerateAcceptanceCriteria(ctx, r.ID, u.ID)
	assert.True(t, hasCode(err, "40010"))

	_, err = gen.GenerateAcceptanceCriteria(ctx, 9999, u.ID)
	assert.Error(t, err)
}

func TestGeneration_Tasks(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "analyst@example.com", model.RoleAnalyst)
	p := env.project(t, u, "Billing")
	r := env.requirement(t, p, u, "Refunds")

	author := replyWith(`[
		{"title": "Build refund API", "system": "backend", "priority": "HIGH",
		 "role_efforts": [{"role": "Backend", "hours": 5, "hourly_rate": 100},
		                  {"role": "QA", "hours": 2, "hourly_rate": 50},
		                  {"role": "", "hours": 3}]},
		{"title": "   "},
		{"title": "Write docs", "estimated_hours": 3, "priority": "someday"}
	]`)
	gen := newGeneration(env, &fakeProviders{author: author}, nil)

	_, tasks, err := gen.GenerateTasks(context.Background(), r.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	api := tasks[0]
	assert.Equal(t, "high", api.Priority)
	assert.Equal(t, 7.0, api.EstimatedHours)
	require.Len(t, api.RoleEfforts, 2)
	assert.Equal(t, "backend", api.RoleEfforts[0].Role)
	assert.Equal(t, "qa", api.RoleEfforts[1].Role)
	assert.NotZero(t, api.RoleEfforts[0].ID)

	assert.Equal(t, "medium", tasks[1].Priority)
	assert.Equal(t, 3.0, tasks[1].EstimatedHours)
	assert.Empty(t, tasks[1].RoleEfforts)

	stored, err := NewTaskService(env.db).ListByRequirement(r.ID, "")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestGeneration_Workflow(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "analyst@example.com", model.RoleAnalyst)
	p := env.project(t, u, "Billing")
	r := env.requirement(t, p, u, "Refunds")

	author := replyWith(`{"name": "", "nodes": [
		{"id": "s", "type": "start", "label": "Request"},
		{"id": "c", "type": "decision", "label": "Approve?"},
		{"id": "c", "type": "task", "label": "duplicate"},
		{"id": "e", "type": "end", "label": "Done"}
	], "edges": [
		{"source": "s", "target": "c"},
		{"source": "c", "target": "e", "label": "yes"},
		{"source": "c", "target": "ghost"}
	]}`)
	gen := newGeneration(env, &fakeProviders{author: author}, nil)

	wf, err := gen.GenerateWorkflow(context.Background(), r.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowSourceAI, wf.Source)
	assert.Equal(t, r.Code+" workflow", wf.Name)
	require.Len(t, wf.Nodes, 3)
	require.Len(t, wf.Edges, 2)
	assert.Equal(t, model.NodeTypeTask, wf.Nodes[1].Type)
	assert.Equal(t, "e1", wf.Edges[0].ID)
	assert.Less(t, wf.Nodes[0].Position.X, wf.Nodes[1].Position.X)
	assert.Less(t, wf.Nodes[1].Position.X, wf.Nodes[2].Position.X)
	require.NotNil(t, wf.RequirementID)
	assert.Equal(t, r.ID, *wf.RequirementID)

	empty := replyWith(`{"nodes": []}`)
	empty.provider = ai.ProviderOpenAI
	_, err = newGeneration(env, &fakeProviders{author: empty}, nil).GenerateWorkflow(context.Background(), r.ID, u.ID)
	assert.True(t, hasCode(err, "50201"))
	assert.Contains(t, err.Error(), "openai request failed")
}

func TestGeneration_ExpertReview(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "analyst@example.com", model.RoleAnalyst)
	p := env.project(t, u, "Billing")
	r := env.requirement(t, p, u, "Refunds")

	reviewer := replyWith(`{"summary": "Clear enough", "strengths": ["scoped", "testable"], "weaknesses": ["no SLA"]}`)
	gen := newGeneration(env, &fakeProviders{reviewer: reviewer}, nil)

	updated, err := gen.ExpertReview(context.Background(), r.ID, u.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.ExpertReview.Data)
	assert.Equal(t, 7, updated.ExpertReview.Data.Rating)
	assert.Equal(t, "gemini-1.5-pro", updated.ExpertReview.Data.Model)
	assert.False(t, updated.ExpertReview.Data.ReviewedAt.IsZero())

	_, err = newGeneration(env, &fakeProviders{}, nil).ExpertReview(context.Background(), r.ID, u.ID)
	assert.True(t, hasCode(err, "40010"))
}

func TestGeneration_Contradictions(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "analyst@example.com", model.RoleAnalyst)
	p := env.project(t, u, "Billing")
	r := env.requirement(t, p, u, "Refunds are instant")
	slow := env.requirement(t, p, u, "Refunds take 14 days")
	env.requirement(t, p, u, "Export invoices as CSV")
	approval := env.requirement(t, p, u, "Refunds need manager approval")

	scorer := &fakeScorer{scores: map[string]float64{"14 days": 0.92, "CSV": 0.1, "approval": 0.5}}
	gen := newGeneration(env, &fakeProviders{scorer: scorer}, nil)

	found, err := gen.Contradictions(context.Background(), r.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, slow.ID, found[0].RequirementID)
	assert.Equal(t, 0.92, found[0].Score)
	assert.Equal(t, approval.ID, found[1].RequirementID)

	_, err = newGeneration(env, &fakeProviders{}, nil).Contradictions(context.Background(), r.ID, u.ID)
	assert.True(t, hasCode(err, "40010"))
}

func TestGeneration_DeriveRequirements(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "analyst@example.com", model.RoleAnalyst)
	p := env.project(t, u, "Billing")

	input := &model.InputData{ProjectID: p.ID, Name: "kickoff.txt", Kind: model.InputKindText,
		ExtractedText: "We need refunds. Also invoices must be exportable.", UploadedBy: u.ID}
	require.NoError(t, env.db.Create(input).Error)

	author := replyWith(`[
		{"title": "Refunds", "description": "Issue refunds", "priority": "High"},
		{"title": "refunds ", "description": "duplicate"},
		{"title": "Invoice export"}
	]`)
	gen := newGeneration(env, &fakeProviders{author: author}, nil)

	created, err := gen.DeriveRequirements(context.Background(), input.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "REQ-001", created[0].Code)
	assert.Equal(t, "high", created[0].Priority)
	assert.Equal(t, model.RequirementStatusDraft, created[1].Status)
	require.NotNil(t, created[1].InputDataID)
	assert.Equal(t, input.ID, *created[1].InputDataID)
	assert.Equal(t, 1, author.calls())
	assert.Contains(t, author.prompts[0], "kickoff.txt")

	var reloaded model.InputData
	require.NoError(t, env.db.First(&reloaded, input.ID).Error)
	assert.Equal(t, model.InputStatusProcessed, reloaded.Status)

	blank := &model.InputData{ProjectID: p.ID, Name: "empty.mp3", Kind: model.InputKindAudio, UploadedBy: u.ID}
	require.NoError(t, env.db.Create(blank).Error)
	_, err = gen.DeriveRequirements(context.Background(), blank.ID, u.ID)
	assert.True(t, hasCode(err, "40001"))
}

func TestGeneration_DeriveRequirementsKeepsResultsWhenStatusUpdateFails(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "analyst@example.com", model.RoleAnalyst)
	p := env.project(t, u, "Billing")
	input := &model.InputData{ProjectID: p.ID, Name: "kickoff.txt", Kind: model.InputKindText,
		ExtractedText: "We need refunds.", UploadedBy: u.ID}
	require.NoError(t, env.db.Create(input).Error)

	require.NoError(t, env.db.Callback().Update().Before("gorm:update").Register("fail_input_status", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Name == "InputData" {
			_ = tx.AddError(errors.New("read-only"))
		}
	}))

	gen := newGeneration(env, &fakeProviders{author: replyWith(`[{"title": "Refunds"}]`)}, nil)
	created, err := gen.DeriveRequirements(context.Background(), input.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	var reloaded model.InputData
	require.NoError(t, env.db.First(&reloaded, input.ID).Error)
	assert.NotEqual(t, model.InputStatusProcessed, reloaded.Status)
}

func TestGeneration_QueueAcceptanceCriteria(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "manager@example.com", model.RoleManager)
	p := env.project(t, u, "Billing")
	reqs := NewRequirementService(env.db)
	first := env.requirement(t, p, u, "Refunds")
	broken := env.requirement(t, p, u, "Broken export")
	done := env.requirement(t, p, u, "Invoices")
	_, err := reqs.SetAcceptanceCriteria(done.ID, model.AcceptanceCriteria{{ID: "AC-1", Description: "exists"}})
	require.NoError(t, err)

	author := &fakeGenerator{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Broken export") {
			return "", errors.New("upstream 500")
		}
		return `[{"description": "works"}]`, nil
	}}
	pool := jobs.NewPool(2, 10)
	gen := newGeneration(env, &fakeProviders{author: author}, pool)

	queued, err := gen.QueueAcceptanceCriteria(context.Background(), p.ID, u, true)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	pool.Drain()

	got, err := reqs.GetByID(first.ID)
	require.NoError(t, err)
	require.Len(t, got.AcceptanceCriteria, 1)
	assert.Equal(t, "works", got.AcceptanceCriteria[0].Description)

	got, err = reqs.GetByID(broken.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AcceptanceCriteria)

	got, err = reqs.GetByID(done.ID)
	require.NoError(t, err)
	assert.Equal(t, "exists", got.AcceptanceCriteria[0].Description)

	var activity model.Activity
	require.NoError(t, env.db.Where("action = ?", "acceptance_criteria.batch_completed").First(&activity).Error)
	assert.Contains(t, activity.Description, "for 1 requirements, 1 failed")

	// A closed pool rejects every job.
	_, err = gen.QueueAcceptanceCriteria(context.Background(), p.ID, u, false)
	assert.True(t, hasCode(err, "50301"))
}
