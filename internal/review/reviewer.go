// Package review runs the expert review of a requirement.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/pkg/llmjson"
)

const (
	minRating = 1
	maxRating = 10
	timeout   = 5 * time.Minute
)

type Reviewer struct {
	gen   ai.Generator
	model string
}

func NewReviewer(gen ai.Generator, modelName string) *Reviewer {
	return &Reviewer{gen: gen, model: modelName}
}

func (r *Reviewer) Run(ctx context.Context, brief ai.RequirementBrief) (*model.ExpertReview, error) {
	reviewCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := r.gen.Generate(reviewCtx, ai.SystemAnalyst, BuildReviewPrompt(brief))
	if err != nil {
		return nil, err
	}

	var result model.ExpertReview
	if err := llmjson.Decode(output, &result); err != nil {
		return nil, &ai.ProviderError{Provider: ai.ProviderGemini, Err: fmt.Errorf("parse review result: %w", err)}
	}
	result.Rating = normalizeRating(result)
	result.Model = r.model
	result.ReviewedAt = time.Now()
	return &result, nil
}

// normalizeRating clamps the model's rating; a missing rating is derived from
// the balance of strengths and weaknesses.
func normalizeRating(result model.ExpertReview) int {
	rating := result.Rating
	if rating == 0 {
		rating = 7 + len(result.Strengths)/2 - len(result.Weaknesses)
	}
	if rating < minRating {
		rating = minRating
	}
	if rating > maxRating {
		rating = maxRating
	}
	return rating
}
