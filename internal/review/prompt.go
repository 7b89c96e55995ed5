package review

import (
	"fmt"

	"github.com/reqforge/backend/internal/ai"
)

func BuildReviewPrompt(b ai.RequirementBrief) string {
	return fmt.Sprintf(`Act as an independent requirements engineering expert and review the requirement below.
Assess:
1. Clarity (is it unambiguous, one reading only)
2. Completeness (actors, inputs, outputs, error cases)
3. Testability (can the acceptance criteria be verified)
4. Feasibility (scope, dependencies, risk)

%s
Output strict JSON:
{
  "rating": 1-10,
  "summary": "overall assessment",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "suggestions": ["..."]
}
Output JSON only, nothing else.`, b.Render())
}
