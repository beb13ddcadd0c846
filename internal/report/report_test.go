package report

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func outcome() *models.RunOutcome {
	return &models.RunOutcome{
		RunID:      "abcd1234",
		Status:     models.RunStatusPartialSuccess,
		HaltReason: "",
		Plan: &models.ExecutionPlan{
			Levels:         [][]string{{"r1", "r2"}, {"a1"}},
			ExecutionOrder: []string{"r1", "r2", "a1"},
			Strategy:       models.StrategyParallel,
		},
		Cost: models.CostRollup{
			Tasks:    models.Usage{InputTokens: 1200, OutputTokens: 300, Cost: 0.3},
			Overhead: models.Usage{InputTokens: 100, Cost: 0.05},
		},
		Confidence: models.ConfidenceRollup{Overall: 0.72, Mean: 0.8, Graph: 1, Completed: 2},
		Summary: models.ExecutionSummary{
			ByCapability: map[models.Capability][]models.TaskSummary{
				models.CapabilityResearch: {
					{TaskID: "r1", Status: models.TaskStatusComplete, Duration: 1500 * time.Millisecond, Tokens: 700, Cost: 0.1},
					{TaskID: "r2", Status: models.TaskStatusFailed, Attempts: 3, Reason: "schema validation failed"},
				},
				models.CapabilityAnalysis: {
					{TaskID: "a1", Level: 1, Status: models.TaskStatusComplete, Cached: true},
				},
			},
		},
		Synthesis: models.Synthesis{Text: "All good."},
		Duration:  90 * time.Second,
	}
}

func TestSummaryView_Render(t *testing.T) {
	out := NewSummaryView(1).Render(outcome())

	for _, want := range []string{
		"Run abcd1234",
		"partial_success",
		"1,600",
		"$0.3500",
		"Medium (min 0.72",
		"(3 attempts)",
		"schema validation failed",
		"cached",
		"35.0% of $1.00",
		"All good.",
		"1m30s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "analysis") > strings.Index(out, "research") {
		t.Error("capabilities should be listed in sorted order")
	}
}

func TestSummaryView_NoBudgetNoBar(t *testing.T) {
	out := NewSummaryView(0).Render(outcome())
	if strings.Contains(out, "█") || strings.Contains(out, "░") {
		t.Error("no progress bar expected without a budget")
	}
}

func TestRenderPlan(t *testing.T) {
	plan := &models.ExecutionPlan{
		Levels:      [][]string{{"r1"}, {"a1"}},
		Strategy:    models.StrategySequential,
		Confidence:  0.9,
		Reasoning:   "2 subtasks in 2 levels",
		RiskFactors: []string{"analysis a1 has no research input"},
	}
	subtasks := []models.Subtask{
		{ID: "r1", Objective: "Research", Capability: models.CapabilityResearch, Priority: models.PriorityMedium},
		{ID: "a1", Objective: "Analyze", Capability: models.CapabilityAnalysis, Priority: models.PriorityHigh, DependsOn: []string{"r1"}},
	}
	out := RenderPlan(plan, subtasks)
	for _, want := range []string{"Level 1", "a1 [analysis, high] Analyze", "after r1", "Risk:"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q:\n%s", want, out)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4500: "-4,500"}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}
