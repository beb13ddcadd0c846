package models

import "time"

// RunStatus is the overall outcome of an orchestration run.
type RunStatus string

const (
	// RunStatusSuccess means every subtask completed.
	RunStatusSuccess RunStatus = "success"
	// RunStatusPartialSuccess means some subtasks failed but the plan ran to
	// the end.
	RunStatusPartialSuccess RunStatus = "partial_success"
	// RunStatusAborted means the run stopped scheduling levels early.
	RunStatusAborted RunStatus = "aborted"
	// RunStatusFailed means no subtask completed.
	RunStatusFailed RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusSuccess, RunStatusPartialSuccess, RunStatusAborted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// CapabilityCost is the usage rolled up for one capability.
type CapabilityCost struct {
	Tasks int `json:"tasks"`
	Usage
}

// CostRollup is the run-level cost report.
type CostRollup struct {
	// Tasks is the sum of all per-subtask usage.
	Tasks Usage `json:"tasks"`
	// Overhead is usage outside subtasks: analysis, decomposition, synthesis.
	Overhead Usage `json:"overhead"`
	// ByCapability splits Tasks per capability.
	ByCapability map[Capability]CapabilityCost `json:"by_capability"`
	// ByPhase splits Overhead per phase.
	ByPhase map[string]Usage `json:"by_phase,omitempty"`
}

// Total returns task plus overhead usage.
func (c CostRollup) Total() Usage {
	return c.Tasks.Add(c.Overhead)
}

// ConfidenceRollup summarizes subtask confidences.
type ConfidenceRollup struct {
	// Overall is the minimum confidence across completed subtasks.
	Overall float64 `json:"overall"`
	// Mean is the average confidence across completed subtasks.
	Mean float64 `json:"mean"`
	// Graph is the dependency analyzer's confidence.
	Graph float64 `json:"graph"`
	// Completed counts the subtasks that contributed.
	Completed int `json:"completed"`
}

// TaskSummary is one row of the execution summary.
type TaskSummary struct {
	TaskID   string        `json:"task_id"`
	Status   TaskStatus    `json:"status"`
	Level    int           `json:"level"`
	Duration time.Duration `json:"duration"`
	Tokens   int64         `json:"tokens"`
	Cost     float64       `json:"cost"`
	Attempts int           `json:"attempts"`
	Cached   bool          `json:"cached,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// ExecutionSummary groups task summaries per capability.
type ExecutionSummary struct {
	ByCapability map[Capability][]TaskSummary `json:"by_capability"`
	Duration     time.Duration                `json:"duration"`
	Tokens       int64                        `json:"tokens"`
	Cost         float64                      `json:"cost"`
}

// Synthesis is the final narrative of a run.
type Synthesis struct {
	Text string `json:"text"`
	// Degraded is true when the narrative could not be produced.
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
	Usage    Usage  `json:"usage"`
}

// RunOutcome is what a submission returns.
type RunOutcome struct {
	RunID      string              `json:"run_id"`
	Request    string              `json:"request"`
	Status     RunStatus           `json:"status"`
	HaltReason string              `json:"halt_reason,omitempty"`
	Subtasks   []Subtask           `json:"subtasks"`
	Plan       *ExecutionPlan      `json:"plan"`
	Analysis   *ComplexityAnalysis `json:"analysis,omitempty"`
	// Results holds one entry per subtask, in execution order.
	Results    []TaskResult     `json:"results"`
	Synthesis  Synthesis        `json:"synthesis"`
	Cost       CostRollup       `json:"cost"`
	Confidence ConfidenceRollup `json:"confidence"`
	Summary    ExecutionSummary `json:"summary"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"duration"`
}

// Result returns the result for a subtask ID.
func (o *RunOutcome) Result(id string) (TaskResult, bool) {
	for _, r := range o.Results {
		if r.TaskID == id {
			return r, true
		}
	}
	return TaskResult{}, false
}
