package decompose

import (
	"strings"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Normalize validates a decomposition and returns a cleaned copy:
// objectives trimmed, capability tags normalized, complexity defaulted to
// medium, and priority derived where unset. It fails with
// *DecompositionError when subtasks is empty or a subtask lacks an objective.
func Normalize(subtasks []models.Subtask) ([]models.Subtask, error) {
	if len(subtasks) == 0 {
		return nil, &DecompositionError{Index: -1, Err: ErrEmptyDecomposition}
	}

	out := make([]models.Subtask, len(subtasks))
	for i, st := range subtasks {
		st.Objective = strings.TrimSpace(st.Objective)
		if st.Objective == "" {
			return nil, &DecompositionError{Index: i, Err: ErrMissingObjective}
		}
		st.Capability = models.NormalizeCapability(string(st.Capability))
		if !st.Complexity.Valid() {
			st.Complexity = models.ComplexityMedium
		}
		if st.Priority == "" {
			st.Priority = priorityFor(st.Complexity)
		}
		out[i] = st
	}
	return out, nil
}

func priorityFor(c models.Complexity) models.Priority {
	if c == models.ComplexityHigh {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

// AssignPriorities raises subtasks that wait on others to high priority in a
// parallel plan, so they are submitted first once their level opens.
// Explicit critical priorities are kept.
func AssignPriorities(subtasks []models.Subtask, plan *models.ExecutionPlan) {
	if plan == nil || plan.Strategy != models.StrategyParallel {
		return
	}
	for i := range subtasks {
		if len(subtasks[i].DependsOn) > 0 && subtasks[i].Priority.Rank() < models.PriorityHigh.Rank() {
			subtasks[i].Priority = models.PriorityHigh
		}
	}
}
