package graph

import (
	"fmt"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

const (
	riskPenalty   = 0.1
	minConfidence = 0.5
)

// Analyze builds the dependency graph of subtasks, levels it, and classifies
// the resulting plan. It fails with *MissingDependencyError or *CycleError
// before anything is scheduled.
func Analyze(subtasks []models.Subtask, rules RuleTable) (*DependencyGraph, *models.ExecutionPlan, error) {
	g, err := Build(subtasks)
	if err != nil {
		return nil, nil, err
	}

	levels, err := g.Levels()
	if err != nil {
		return nil, nil, err
	}

	plan := &models.ExecutionPlan{
		Levels:  levels,
		LevelOf: make(map[string]int, g.Size()),
	}
	for i, level := range levels {
		for _, id := range level {
			plan.LevelOf[id] = i
			plan.ExecutionOrder = append(plan.ExecutionOrder, id)
		}
	}

	plan.Strategy = models.StrategySequential
	if plan.Width() > 1 {
		plan.Strategy = models.StrategyParallel
	}
	plan.Reasoning = describe(plan)

	plan.RiskFactors = rules.Evaluate(g)
	for _, id := range g.order {
		if c := g.nodes[id].Capability; !c.Valid() {
			plan.RiskFactors = append(plan.RiskFactors,
				fmt.Sprintf("task %s has unknown capability %q", id, c))
		}
	}
	plan.Confidence = confidence(len(plan.RiskFactors))

	return g, plan, nil
}

func describe(plan *models.ExecutionPlan) string {
	n := len(plan.ExecutionOrder)
	if plan.Strategy == models.StrategyParallel {
		return fmt.Sprintf("%d subtasks in %d levels; up to %d run concurrently", n, len(plan.Levels), plan.Width())
	}
	if n == 1 {
		return "single subtask"
	}
	return fmt.Sprintf("%d subtasks form a chain of %d levels and run one at a time", n, len(plan.Levels))
}

func confidence(risks int) float64 {
	c := 1.0 - riskPenalty*float64(risks)
	if c < minConfidence {
		return minConfidence
	}
	return c
}
