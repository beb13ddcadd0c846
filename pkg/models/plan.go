package models

// Strategy classifies how much parallelism a plan offers.
type Strategy string

const (
	// StrategySequential means every level holds a single subtask.
	StrategySequential Strategy = "sequential"
	// StrategyParallel means at least one level holds several subtasks.
	StrategyParallel Strategy = "parallel"
)

// ExecutionPlan is the leveled schedule derived from a dependency graph.
type ExecutionPlan struct {
	// Levels holds subtask IDs per level, in decomposition order.
	Levels [][]string `json:"levels" yaml:"levels"`
	// ExecutionOrder is Levels flattened.
	ExecutionOrder []string `json:"execution_order" yaml:"execution_order"`
	// LevelOf maps each subtask ID to its level index.
	LevelOf map[string]int `json:"level_of" yaml:"level_of"`
	// Strategy is parallel iff some level has more than one member.
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	// Reasoning describes the shape of the plan.
	Reasoning string `json:"reasoning" yaml:"reasoning"`
	// RiskFactors lists advisory concerns about the inferred graph.
	RiskFactors []string `json:"risk_factors,omitempty" yaml:"risk_factors,omitempty"`
	// Confidence is the certainty in the graph itself, not in task content.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Width returns the size of the largest level.
func (p *ExecutionPlan) Width() int {
	w := 0
	for _, level := range p.Levels {
		if len(level) > w {
			w = len(level)
		}
	}
	return w
}

// ComplexityAnalysis is the optional pre-decomposition assessment of a
// request.
type ComplexityAnalysis struct {
	Complexity             Complexity `json:"complexity" yaml:"complexity"`
	RequiresMultipleAgents bool       `json:"requires_multiple_agents" yaml:"requires_multiple_agents"`
	SuggestedStrategy      Strategy   `json:"suggested_strategy" yaml:"suggested_strategy"`
	Reasoning              string     `json:"reasoning" yaml:"reasoning"`
}
