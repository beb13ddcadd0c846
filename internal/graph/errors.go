package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrMissingDependency indicates a task depends on an ID that does not exist.
var ErrMissingDependency = errors.New("missing dependency")

// ErrDuplicateTask indicates two tasks share an ID.
var ErrDuplicateTask = errors.New("duplicate task id")

// CycleError reports the tasks that could not be ordered.
type CycleError struct {
	// Residual is every task left after topological removal, sorted.
	Residual []string
	// Path is one concrete cycle through Residual, first ID repeated last.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s (unresolvable: %s)",
		ErrCycleDetected, strings.Join(e.Path, " -> "), strings.Join(e.Residual, ", "))
}

// Is makes errors.Is(err, ErrCycleDetected) true.
func (e *CycleError) Is(target error) bool { return target == ErrCycleDetected }

// MissingDependencyError reports a dangling dependency reference.
type MissingDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.DependencyID)
}

// Is makes errors.Is(err, ErrMissingDependency) true.
func (e *MissingDependencyError) Is(target error) bool { return target == ErrMissingDependency }
