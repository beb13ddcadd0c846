package reasoning

import (
	"errors"
	"fmt"
)

// ErrReasoningService matches every ServiceError with errors.Is.
var ErrReasoningService = errors.New("reasoning service error")

// ServiceError is a transport-level failure talking to the reasoning service.
type ServiceError struct {
	// Op names the call that failed.
	Op string
	// Err is the underlying transport error.
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("reasoning service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrReasoningService) true for any ServiceError.
func (e *ServiceError) Is(target error) bool { return target == ErrReasoningService }
