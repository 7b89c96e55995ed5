// Package ai wraps the LLM and NLI providers behind small interfaces.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reqforge/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ProviderClaude      = "claude"
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
)

// Generator produces a text completion for a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Scorer returns the probability that hypothesis contradicts premise.
type Scorer interface {
	Contradiction(ctx context.Context, premise, hypothesis string) (float64, error)
}

// MissingKeyError is answered with HTTP 400; the client shows a "missing API key" prompt.
type MissingKeyError struct {
	Provider string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("40010:missing %s API key", e.Provider)
}

// ProviderError marks an upstream failure, answered with HTTP 502.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("50201:%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func IsMissingKey(err error) bool {
	var mk *MissingKeyError
	return errors.As(err, &mk)
}

// instrumented throttles, times and classifies calls to one provider.
type instrumented struct {
	provider string
	limiter  *rate.Limiter
	gen      Generator
	scorer   Scorer
}

func (i *instrumented) Provider() string { return i.provider }

// ProviderOf names the provider behind g, or claude when g does not say.
func ProviderOf(g interface{}) string {
	if p, ok := g.(interface{ Provider() string }); ok {
		return p.Provider()
	}
	return ProviderClaude
}

func (i *instrumented) wait(ctx context.Context) error {
	if i.limiter == nil {
		return nil
	}
	return i.limiter.Wait(ctx)
}

func (i *instrumented) observe(start time.Time, err error) error {
	metrics.AIDuration.WithLabelValues(i.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AICalls.WithLabelValues(i.provider, "error").Inc()
		zap.L().Warn("ai call failed", zap.String("provider", i.provider), zap.Error(err))
		var pe *ProviderError
		if errors.As(err, &pe) {
			return err
		}
		return &ProviderError{Provider: i.provider, Err: err}
	}
	metrics.AICalls.WithLabelValues(i.provider, "ok").Inc()
	return nil
}

func (i *instrumented) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := i.wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	out, err := i.gen.Generate(ctx, system, prompt)
	return out, i.observe(start, err)
}

func (i *instrumented) Contradiction(ctx context.Context, premise, hypothesis string) (float64, error) {
	if err := i.wait(ctx); err != nil {
		return 0, err
	}
	start := time.Now()
	score, err := i.scorer.Contradiction(ctx, premise, hypothesis)
	return score, i.observe(start, err)
}
