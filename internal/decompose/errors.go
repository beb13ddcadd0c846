package decompose

import (
	"errors"
	"fmt"
)

var (
	// ErrDecomposition matches every DecompositionError with errors.Is.
	ErrDecomposition = errors.New("decomposition failed")
	// ErrEmptyDecomposition indicates no subtasks were produced.
	ErrEmptyDecomposition = errors.New("empty task list returned")
	// ErrMissingObjective indicates a subtask has no objective.
	ErrMissingObjective = errors.New("subtask has no objective")
)

// DecompositionError reports an empty or invalid decomposition.
type DecompositionError struct {
	// Index is the offending subtask position, or -1 for the whole output.
	Index int
	// Err is the specific cause.
	Err error
}

func (e *DecompositionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: subtask %d: %v", ErrDecomposition, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrDecomposition, e.Err)
}

func (e *DecompositionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecomposition) true.
func (e *DecompositionError) Is(target error) bool { return target == ErrDecomposition }
