package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// AnalyzeComplexity asks the reasoning service how complex a request is and
// which strategy suits it. Usage is returned even when parsing fails.
func AnalyzeComplexity(ctx context.Context, svc reasoning.Service, request string, data map[string]any) (*models.ComplexityAnalysis, models.Usage, error) {
	resp, err := svc.Complete(ctx, reasoning.Request{
		TaskID: "analyze",
		System: decompositionSystem,
		Prompt: fmt.Sprintf(complexityPrompt, request, dataText(data)),
		Schema: reasoning.Schema{Name: PhaseAnalysis, Required: []string{"complexity", "suggested_strategy"}},
		Data:   data,
	})
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("analyze complexity: %w", err)
	}

	jsonStr, err := reasoning.ExtractJSON(resp.Content)
	if err != nil {
		return nil, resp.Usage, fmt.Errorf("analyze complexity: %w", err)
	}

	var analysis models.ComplexityAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &analysis); err != nil {
		return nil, resp.Usage, fmt.Errorf("analyze complexity: unmarshal JSON: %w", err)
	}

	analysis.Complexity = models.Complexity(strings.ToLower(string(analysis.Complexity)))
	if !analysis.Complexity.Valid() {
		analysis.Complexity = models.ComplexityMedium
	}
	if analysis.SuggestedStrategy != models.StrategyParallel {
		analysis.SuggestedStrategy = models.StrategySequential
	}
	return &analysis, resp.Usage, nil
}
