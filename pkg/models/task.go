package models

// TaskStatus represents the current state of a subtask.
type TaskStatus string

const (
	// TaskStatusPending indicates the subtask has not been dispatched.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the subtask is with the reasoning service.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusComplete indicates the subtask produced a valid payload.
	TaskStatusComplete TaskStatus = "complete"
	// TaskStatusFailed indicates the subtask ended with an error.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the subtask was never dispatched.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusComplete, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition can happen.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed || s == TaskStatusSkipped
}

// DependencyResultsKey is the data key under which the outputs of a
// subtask's prerequisites are injected before dispatch.
const DependencyResultsKey = "dependency_results"

// Subtask is one unit of decomposed work.
type Subtask struct {
	// ID is the stable identifier of the subtask within a run.
	ID string `json:"id" yaml:"id"`
	// Objective describes what the subtask must achieve.
	Objective string `json:"objective" yaml:"objective"`
	// Capability selects the handler the subtask is routed to.
	Capability Capability `json:"capability" yaml:"capability"`
	// Complexity is the decomposer's estimate of the effort involved.
	Complexity Complexity `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	// Priority orders submission among siblings of the same level.
	Priority Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Data is everything the subtask needs. It must be self-contained.
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	// DependsOn lists subtask IDs that must reach a terminal state first.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// WithData returns a copy of the subtask whose data map is a fresh map
// holding the original entries plus extra. The receiver is not modified.
func (s Subtask) WithData(extra map[string]any) Subtask {
	data := make(map[string]any, len(s.Data)+len(extra))
	for k, v := range s.Data {
		data[k] = v
	}
	for k, v := range extra {
		data[k] = v
	}
	s.Data = data
	if s.DependsOn != nil {
		s.DependsOn = append([]string(nil), s.DependsOn...)
	}
	return s
}
