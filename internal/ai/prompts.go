package ai

import (
	"fmt"
	"strings"

	"github.com/reqforge/backend/internal/model"
)

const SystemAnalyst = "You are a senior business analyst and solution architect. " +
	"You answer with strict JSON only, without prose or markdown."

// RequirementBrief is the requirement context shared by several prompts.
type RequirementBrief struct {
	Code        string
	Title       string
	Description string
	Category    string
	Priority    string
	Criteria    model.AcceptanceCriteria
}

// Render formats the brief as prompt context.
func (b RequirementBrief) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Requirement %s: %s\n", b.Code, b.Title)
	if b.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", b.Category)
	}
	if b.Priority != "" {
		fmt.Fprintf(&sb, "Priority: %s\n", b.Priority)
	}
	fmt.Fprintf(&sb, "Description:\n%s\n", b.Description)
	if len(b.Criteria) > 0 {
		sb.WriteString("Acceptance criteria:\n")
		for _, c := range b.Criteria {
			fmt.Fprintf(&sb, "- %s: %s\n", c.ID, c.Description)
		}
	}
	return sb.String()
}

func BuildAcceptanceCriteriaPrompt(b RequirementBrief) string {
	return fmt.Sprintf(`Write acceptance criteria for the requirement below.

%s
Cover the main flow, validation failures and edge cases. Output a JSON array:
[
  {
    "id": "AC-1",
    "description": "one sentence criterion",
    "gherkin": {
      "scenario": "scenario name",
      "given": ["precondition"],
      "when": ["action"],
      "then": ["expected outcome"],
      "and": ["optional extra outcome"]
    }
  }
]`, b.Render())
}

// GeneratedTask is one implementation task proposed by the model.
type GeneratedTask struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	System         string  `json:"system"`
	Priority       string  `json:"priority"`
	EstimatedHours float64 `json:"estimated_hours"`
	RoleEfforts    []struct {
		Role       string  `json:"role"`
		Hours      float64 `json:"hours"`
		HourlyRate float64 `json:"hourly_rate"`
	} `json:"role_efforts"`
}

func BuildTasksPrompt(b RequirementBrief) string {
	return fmt.Sprintf(`Break the requirement below into implementation tasks.

%s
Each task names the system or component it touches, an estimate in hours, and the
delivery roles involved (for example backend, frontend, qa, devops, design) with hours
and a typical hourly rate. Output a JSON array:
[
  {
    "title": "task title",
    "description": "what to build",
    "system": "component",
    "priority": "low|medium|high|critical",
    "estimated_hours": 8,
    "role_efforts": [{"role": "backend", "hours": 6, "hourly_rate": 95}]
  }
]`, b.Render())
}

// GeneratedWorkflow is a process diagram proposed by the model; positions are assigned later.
type GeneratedWorkflow struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Nodes       []model.WorkflowNode `json:"nodes"`
	Edges       []model.WorkflowEdge `json:"edges"`
}

func BuildWorkflowPrompt(b RequirementBrief) string {
	return fmt.Sprintf(`Model the business process of the requirement below as a workflow diagram.

%s
Use node types start, end, task, gateway and event. There is exactly one start node.
Gateways have one outgoing edge per branch, labelled with the condition. Output JSON:
{
  "name": "workflow name",
  "description": "one sentence",
  "nodes": [{"id": "n1", "type": "start", "label": "Start"}],
  "edges": [{"id": "e1", "source": "n1", "target": "n2", "label": ""}]
}`, b.Render())
}

// DerivedRequirement is one requirement extracted from source material.
type DerivedRequirement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

func BuildDerivePrompt(sourceName, chunk string, part, total int) string {
	return fmt.Sprintf(`Extract software requirements from part %d of %d of the source material "%s".
Only include requirements the text actually states or clearly implies. Skip greetings,
small talk and duplicates.

Source:
"""
%s
"""

Output a JSON array:
[{"title": "short title", "description": "the system shall ...", "category": "functional|non-functional|constraint", "priority": "low|medium|high|critical"}]`,
		part, total, sourceName, chunk)
}

func BuildDocumentFieldPrompt(instruction, projectContext string) string {
	return fmt.Sprintf(`Fill a field of a project document.

Project context:
%s

Instruction: %s

Answer with JSON: {"text": "the field content"}`, projectContext, instruction)
}
