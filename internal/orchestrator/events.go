package orchestrator

import (
	"time"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted is emitted once the request is accepted.
	EventRunStarted EventType = "run_started"
	// EventLevelStarted is emitted before a level's subtasks are dispatched.
	EventLevelStarted EventType = "level_started"
	// EventTaskStarted indicates a subtask was handed to the dispatcher.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a subtask completed.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a subtask failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a subtask was never dispatched.
	EventTaskSkipped EventType = "task_skipped"
	// EventLevelCompleted is emitted after a level's barrier.
	EventLevelCompleted EventType = "level_completed"
	// EventBudgetWarning is emitted once spend crosses the warning threshold.
	EventBudgetWarning EventType = "budget_warning"
	// EventRunCompleted is the last event of a run.
	EventRunCompleted EventType = "run_completed"
)

// Event is emitted while a run progresses.
type Event struct {
	Type  EventType
	RunID string
	// Level is the dependency level, or -1 for run-wide events.
	Level int
	// TaskID is set for task events.
	TaskID     string
	Capability models.Capability
	// Status is the task status for task events and the run status for
	// run_completed.
	Status  string
	Message string
	// Cost is the run's total spend so far.
	Cost      float64
	Duration  time.Duration
	Timestamp time.Time
}
