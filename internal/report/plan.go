package report

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// RenderPlan lists the levels of a plan with each subtask's capability,
// priority and prerequisites.
func RenderPlan(plan *models.ExecutionPlan, subtasks []models.Subtask) string {
	byID := make(map[string]models.Subtask, len(subtasks))
	for _, t := range subtasks {
		byID[t.ID] = t
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Strategy:   %s\n", plan.Strategy)
	fmt.Fprintf(&b, "Confidence: %.2f\n", plan.Confidence)
	fmt.Fprintf(&b, "Reasoning:  %s\n", plan.Reasoning)
	for _, risk := range plan.RiskFactors {
		fmt.Fprintf(&b, "Risk:       %s\n", risk)
	}
	for i, level := range plan.Levels {
		fmt.Fprintf(&b, "\nLevel %d\n", i)
		for _, id := range level {
			t := byID[id]
			fmt.Fprintf(&b, "  %s [%s, %s] %s\n", id, t.Capability, t.Priority, t.Objective)
			if len(t.DependsOn) > 0 {
				fmt.Fprintf(&b, "      after %s\n", strings.Join(t.DependsOn, ", "))
			}
		}
	}
	return b.String()
}
