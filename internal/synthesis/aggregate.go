// Package synthesis aggregates subtask results into run-level rollups and
// produces the final narrative.
package synthesis

import (
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Aggregate is the deterministic view of a finished plan.
type Aggregate struct {
	// Results are ordered by the plan's execution order.
	Results    []models.TaskResult
	Confidence models.ConfidenceRollup
	Summary    models.ExecutionSummary
}

// Collect orders results by plan and computes the confidence rollup and the
// execution summary. Iteration follows ExecutionOrder only, so the output is
// the same whatever order siblings finished in. Summary.Duration is left to
// the caller.
func Collect(plan *models.ExecutionPlan, results map[string]models.TaskResult) Aggregate {
	agg := Aggregate{
		Results: make([]models.TaskResult, 0, len(plan.ExecutionOrder)),
		Confidence: models.ConfidenceRollup{
			Graph: plan.Confidence,
		},
		Summary: models.ExecutionSummary{
			ByCapability: make(map[models.Capability][]models.TaskSummary),
		},
	}

	var sum float64
	for _, id := range plan.ExecutionOrder {
		r, ok := results[id]
		if !ok {
			continue
		}
		agg.Results = append(agg.Results, r)

		if r.Succeeded() {
			if agg.Confidence.Completed == 0 || r.Confidence < agg.Confidence.Overall {
				agg.Confidence.Overall = r.Confidence
			}
			agg.Confidence.Completed++
			sum += r.Confidence
		}

		agg.Summary.Tokens += r.Usage.Tokens()
		agg.Summary.Cost += r.Usage.Cost
		agg.Summary.ByCapability[r.Capability] = append(agg.Summary.ByCapability[r.Capability], models.TaskSummary{
			TaskID:   r.TaskID,
			Status:   r.Status,
			Level:    plan.LevelOf[id],
			Duration: r.Duration,
			Tokens:   r.Usage.Tokens(),
			Cost:     r.Usage.Cost,
			Attempts: r.Attempts,
			Cached:   r.Cached,
			Reason:   reason(r),
		})
	}
	if agg.Confidence.Completed > 0 {
		agg.Confidence.Mean = sum / float64(agg.Confidence.Completed)
	}
	return agg
}

func reason(r models.TaskResult) string {
	if r.SkipReason != "" {
		return r.SkipReason
	}
	return r.Error
}

// Status derives the run status from the results and whether scheduling
// was halted early.
func Status(results []models.TaskResult, halted bool) models.RunStatus {
	completed := 0
	for _, r := range results {
		if r.Succeeded() {
			completed++
		}
	}
	switch {
	case halted:
		return models.RunStatusAborted
	case completed == 0:
		return models.RunStatusFailed
	case completed == len(results):
		return models.RunStatusSuccess
	default:
		return models.RunStatusPartialSuccess
	}
}
