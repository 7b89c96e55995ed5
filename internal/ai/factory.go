package ai

import (
	"context"
	"net/http"
	"time"

	"github.com/reqforge/backend/internal/config"
	"github.com/reqforge/backend/internal/metrics"
	"golang.org/x/time/rate"
)

// Keys are the provider credentials available to one user.
type Keys struct {
	Anthropic   string
	Gemini      string
	HuggingFace string
	OpenAI      string

	// Model overrides the configured author model when set.
	Model string
}

// KeyResolver returns the stored keys for a user; empty fields fall back to config.
type KeyResolver interface {
	APIKeys(ctx context.Context, userID uint) (Keys, error)
}

// Providers hands out per-user clients. The author drafts criteria, tasks and
// workflows; the reviewer critiques requirements; the scorer detects contradictions.
type Providers interface {
	Author(ctx context.Context, userID uint) (Generator, error)
	Reviewer(ctx context.Context, userID uint) (Generator, error)
	Scorer(ctx context.Context, userID uint) (Scorer, error)
}

type Factory struct {
	cfg        config.AIConfig
	keys       KeyResolver
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewFactory(cfg config.AIConfig, keys KeyResolver) *Factory {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Factory{
		cfg:        cfg,
		keys:       keys,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

func (f *Factory) resolve(ctx context.Context, userID uint) (Keys, error) {
	keys := Keys{}
	if f.keys != nil && userID != 0 {
		k, err := f.keys.APIKeys(ctx, userID)
		if err != nil {
			return keys, err
		}
		keys = k
	}
	if keys.Anthropic == "" {
		keys.Anthropic = f.cfg.AnthropicAPIKey
	}
	if keys.Gemini == "" {
		keys.Gemini = f.cfg.GeminiAPIKey
	}
	if keys.HuggingFace == "" {
		keys.HuggingFace = f.cfg.HuggingFaceAPIKey
	}
	if keys.OpenAI == "" {
		keys.OpenAI = f.cfg.OpenAIAPIKey
	}
	return keys, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func missing(provider string) error {
	metrics.AICalls.WithLabelValues(provider, "missing_key").Inc()
	return &MissingKeyError{Provider: provider}
}

func (f *Factory) wrap(provider string, g Generator) Generator {
	return &instrumented{provider: provider, limiter: f.limiter, gen: g}
}

func (f *Factory) Author(ctx context.Context, userID uint) (Generator, error) {
	keys, err := f.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.cfg.Provider == ProviderOpenAI {
		if keys.OpenAI == "" {
			return nil, missing(ProviderOpenAI)
		}
		return f.wrap(ProviderOpenAI, NewOpenAIClient(keys.OpenAI, f.cfg.OpenAIBaseURL, orDefault(keys.Model, f.cfg.OpenAIModel))), nil
	}
	if keys.Anthropic == "" {
		return nil, missing(ProviderClaude)
	}
	model := orDefault(keys.Model, f.cfg.ClaudeModel)
	return f.wrap(ProviderClaude, NewClaudeClient(f.httpClient, f.cfg.AnthropicBaseURL, keys.Anthropic, model)), nil
}

func (f *Factory) Reviewer(ctx context.Context, userID uint) (Generator, error) {
	keys, err := f.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if keys.Gemini == "" {
		return nil, missing(ProviderGemini)
	}
	g, err := NewGeminiClient(ctx, keys.Gemini, f.cfg.GeminiModel)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Err: err}
	}
	return f.wrap(ProviderGemini, g), nil
}

func (f *Factory) Scorer(ctx context.Context, userID uint) (Scorer, error) {
	keys, err := f.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if keys.HuggingFace == "" {
		return nil, missing(ProviderHuggingFace)
	}
	hf := NewHuggingFaceClient(f.httpClient, f.cfg.HuggingFaceURL, keys.HuggingFace)
	return &instrumented{provider: ProviderHuggingFace, limiter: f.limiter, scorer: hf}, nil
}
