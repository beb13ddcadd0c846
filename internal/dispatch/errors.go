package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

var (
	// ErrCapabilityNotFound matches every CapabilityNotFoundError.
	ErrCapabilityNotFound = errors.New("capability not found")
	// ErrSchemaValidation matches every SchemaValidationError.
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrTaskTimeout matches every TaskTimeoutError.
	ErrTaskTimeout = errors.New("task timed out")
)

// CapabilityNotFoundError reports a subtask no handler can serve.
type CapabilityNotFoundError struct {
	Capability models.Capability
}

func (e *CapabilityNotFoundError) Error() string {
	return fmt.Sprintf("%s: no handler for %q", ErrCapabilityNotFound, e.Capability)
}

func (e *CapabilityNotFoundError) Is(target error) bool { return target == ErrCapabilityNotFound }

// SchemaValidationError reports a reply that kept violating its schema.
type SchemaValidationError struct {
	Capability models.Capability
	Attempts   int
	// Violations are those of the last reply.
	Violations []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s: %s reply after %d attempt(s): %s",
		ErrSchemaValidation, e.Capability, e.Attempts, strings.Join(e.Violations, "; "))
}

func (e *SchemaValidationError) Is(target error) bool { return target == ErrSchemaValidation }

// TaskTimeoutError reports a reasoning call that exceeded the task timeout.
type TaskTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("%s: task %s exceeded %s", ErrTaskTimeout, e.TaskID, e.Timeout)
}

func (e *TaskTimeoutError) Is(target error) bool { return target == ErrTaskTimeout }

// KindOf classifies an error for TaskResult.ErrorKind.
func KindOf(err error) models.ErrorKind {
	switch {
	case err == nil:
		return models.ErrorKindNone
	case errors.Is(err, ErrCapabilityNotFound):
		return models.ErrorKindCapabilityNotFound
	case errors.Is(err, ErrSchemaValidation):
		return models.ErrorKindSchemaValidation
	case errors.Is(err, ErrTaskTimeout), errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindTimeout
	case errors.Is(err, reasoning.ErrReasoningService):
		return models.ErrorKindReasoningService
	case errors.Is(err, context.Canceled):
		return models.ErrorKindCancelled
	default:
		return models.ErrorKindInternal
	}
}
