package models

import (
	"encoding/json"
	"time"
)

// ErrorKind classifies why a subtask failed or was skipped.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindCapabilityNotFound ErrorKind = "capability_not_found"
	ErrorKindSchemaValidation   ErrorKind = "schema_validation"
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindReasoningService   ErrorKind = "reasoning_service"
	ErrorKindCancelled          ErrorKind = "cancelled"
	ErrorKindInternal           ErrorKind = "internal"
)

// Skip reasons recorded on subtasks that were never dispatched.
const (
	SkipReasonUpstreamFailure = "upstream failure"
	SkipReasonBudgetExhausted = "budget exhausted"
	SkipReasonRunTimeout      = "run timeout"
	SkipReasonCancelled       = "cancelled"
	SkipReasonHalted          = "halted"
)

// Usage is token and monetary usage of one or more reasoning calls.
type Usage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Tokens returns input plus output tokens.
func (u Usage) Tokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		Cost:         u.Cost + o.Cost,
	}
}

// TaskResult is the outcome of one subtask.
type TaskResult struct {
	// TaskID identifies the subtask.
	TaskID string `json:"task_id"`
	// Capability is the subtask's capability tag.
	Capability Capability `json:"capability"`
	// Status is the terminal (or current) state.
	Status TaskStatus `json:"status"`
	// Payload is the typed reply. Set only when Status is complete.
	Payload Payload `json:"-"`
	// Confidence is the payload's self-reported confidence.
	Confidence float64 `json:"confidence"`
	// ConfidenceReasoning explains Confidence.
	ConfidenceReasoning string `json:"confidence_reasoning,omitempty"`
	// ErrorKind classifies a failure.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	// Error is the failure message.
	Error string `json:"error,omitempty"`
	// SkipReason is set when the subtask was never dispatched.
	SkipReason string `json:"skip_reason,omitempty"`
	// Attempts counts reasoning calls made for the subtask.
	Attempts int `json:"attempts"`
	// Cached is true when the payload came from the result cache.
	Cached bool `json:"cached,omitempty"`
	// StartedAt is when dispatch began.
	StartedAt time.Time `json:"started_at,omitempty"`
	// CompletedAt is when dispatch ended.
	CompletedAt time.Time `json:"completed_at,omitempty"`
	// Duration is CompletedAt minus StartedAt.
	Duration time.Duration `json:"duration"`
	// Usage accumulates all attempts, including rejected replies.
	Usage Usage `json:"usage"`
}

// Succeeded reports whether the subtask produced a payload.
func (r TaskResult) Succeeded() bool {
	return r.Status == TaskStatusComplete && r.Payload != nil
}

type taskResultJSON TaskResult

// MarshalJSON includes the payload under the "payload" key.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		taskResultJSON
		Payload Payload `json:"payload,omitempty"`
	}{taskResultJSON(r), r.Payload})
}

// UnmarshalJSON decodes the payload using the capability's schema type.
func (r *TaskResult) UnmarshalJSON(b []byte) error {
	var aux struct {
		taskResultJSON
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = TaskResult(aux.taskResultJSON)
	if len(aux.Payload) > 0 && string(aux.Payload) != "null" {
		p, err := DecodePayload(r.Capability, aux.Payload)
		if err != nil {
			return err
		}
		r.Payload = p
	}
	return nil
}

// DependencyOutput is what a dependent subtask receives for one of its
// prerequisites under DependencyResultsKey.
type DependencyOutput struct {
	TaskID     string     `json:"task_id"`
	Objective  string     `json:"objective"`
	Capability Capability `json:"capability"`
	Status     TaskStatus `json:"status"`
	Result     Payload    `json:"result,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	// Missing marks a prerequisite that produced no result.
	Missing bool      `json:"missing,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
}
