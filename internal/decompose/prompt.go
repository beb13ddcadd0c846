package decompose

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

const decompositionSystem = `You are a careful task planner. You split a request into focused, atomic subtasks and declare which subtasks need the results of others. You answer with JSON only.`

// decompositionPrompt is the prompt template for task decomposition.
const decompositionPrompt = `Decompose the request into well-defined subtasks. Keep them focused; do not go overboard.

Request:
%s

Data:
%s

Prior analysis:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "subtasks": [
    {
      "id": "short-unique-id",
      "objective": "specific, measurable objective",
      "capability": "research|analysis|synthesis|validation|generation",
      "estimated_complexity": "low|medium|high",
      "data": {"all": "data this subtask needs"},
      "depends_on": ["id of a prerequisite subtask"]
    }
  ]
}

Rules:
- Every subtask runs in isolation: ALL data it needs MUST be inside its "data"
- Only declare a dependency when a subtask needs another subtask's output
- Results of dependencies are delivered automatically under "dependency_results"
- Use an empty array [] for depends_on if there are no dependencies
- Never create circular dependencies
- Subtasks with no dependency between them run in parallel`

const complexityPrompt = `Analyze the complexity of this request and how it should be executed.

Request:
%s

Data:
%s

Consider:
1. Can a single agent do this, or does it need several?
2. Are the parts independent (parallel) or does each need the previous one (sequential)?

Return ONLY a JSON object with this exact structure (no other text):
{
  "complexity": "low|medium|high",
  "requires_multiple_agents": true,
  "suggested_strategy": "sequential|parallel",
  "reasoning": "one or two sentences"
}`

func buildDecompositionPrompt(request string, data map[string]any, analysis *models.ComplexityAnalysis) string {
	analysisText := "None"
	if analysis != nil {
		if b, err := json.MarshalIndent(analysis, "", "  "); err == nil {
			analysisText = string(b)
		}
	}
	return fmt.Sprintf(decompositionPrompt, request, dataText(data), analysisText)
}

func dataText(data map[string]any) string {
	if len(data) == 0 {
		return "None"
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "None"
	}
	return string(b)
}
