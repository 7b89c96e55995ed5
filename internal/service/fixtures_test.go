package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/database"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/session"
	"github.com/reqforge/backend/internal/sse"
	"github.com/reqforge/backend/internal/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	store    *storage.Local
	rdb      *redis.Client
	hub      *sse.Hub
	sessions *session.Store
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &testEnv{
		db:       db,
		store:    store,
		rdb:      rdb,
		hub:      sse.NewHub(rdb),
		sessions: session.NewStore(rdb),
	}
}

func (e *testEnv) user(t *testing.T, email, role string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: strings.Split(email, "@")[0], PasswordHash: "x", Role: role, Status: model.UserStatusActive}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) project(t *testing.T, owner *model.User, name string) *model.Project {
	t.Helper()
	p := &model.Project{Name: name, OwnerID: owner.ID, Status: model.ProjectStatusActive}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *testEnv) requirement(t *testing.T, p *model.Project, creator *model.User, title string) *model.Requirement {
	t.Helper()
	r := &model.Requirement{ProjectID: p.ID, Title: title, CreatorID: creator.ID}
	require.NoError(t, NewRequirementService(e.db).Create(r))
	return r
}

// fakeGenerator answers every prompt with reply(prompt) and records the prompts.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)

	// provider defaults to claude.
	provider string
}

func (f *fakeGenerator) Provider() string {
	if f.provider == "" {
		return ai.ProviderClaude
	}
	return f.provider
}

func (f *fakeGenerator) Generate(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.reply(prompt)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func replyWith(out string) *fakeGenerator {
	return &fakeGenerator{reply: func(string) (string, error) { return out, nil }}
}

type fakeScorer struct {
	scores map[string]float64
}

func (f *fakeScorer) Contradiction(_ context.Context, _, hypothesis string) (float64, error) {
	for k, v := range f.scores {
		if strings.Contains(hypothesis, k) {
			return v, nil
		}
	}
	return 0, nil
}

// fakeProviders returns its fields; a nil field reports a missing key.
type fakeProviders struct {
	author   ai.Generator
	reviewer ai.Generator
	scorer   ai.Scorer
}

func (f *fakeProviders) Author(context.Context, uint) (ai.Generator, error) {
	if f.author == nil {
		return nil, &ai.MissingKeyError{Provider: ai.ProviderClaude}
	}
	return f.author, nil
}

func (f *fakeProviders) Reviewer(context.Context, uint) (ai.Generator, error) {
	if f.reviewer == nil {
		return nil, &ai.MissingKeyError{Provider: ai.ProviderGemini}
	}
	return f.reviewer, nil
}

func (f *fakeProviders) Scorer(context.Context, uint) (ai.Scorer, error) {
	if f.scorer == nil {
		return nil, &ai.MissingKeyError{Provider: ai.ProviderHuggingFace}
	}
	return f.scorer, nil
}

// failOn makes every query of the named model fail with err.
func failOn(t *testing.T, db *gorm.DB, modelName string, err error) {
	t.Helper()
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("fail_"+modelName, func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Name == modelName {
			_ = tx.AddError(err)
		}
	}))
}
