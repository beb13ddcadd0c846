// Package reasoning defines the boundary to the external reasoning service
// and an Anthropic-backed implementation of it.
package reasoning

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Schema is the contract a structured reply must satisfy.
type Schema struct {
	// Name identifies the schema, usually the capability tag.
	Name string
	// Required lists top-level JSON fields the reply must contain.
	Required []string
	// Example is a JSON skeleton shown to the model.
	Example string
}

// Structured reports whether the request expects a JSON reply.
func (s Schema) Structured() bool {
	return len(s.Required) > 0
}

// Request is one call to the reasoning service.
type Request struct {
	// TaskID is used for logging only.
	TaskID string
	// System is the system prompt.
	System string
	// Prompt is the user prompt, already combining objective and data.
	Prompt string
	// Schema is the reply contract. Empty for free-text calls.
	Schema Schema
	// Data is the payload the prompt was built from.
	Data map[string]any
	// MaxTokens caps the reply. Zero uses the service default.
	MaxTokens int64
}

// DataJSON renders Data as indented JSON, or "None" when empty.
func (r Request) DataJSON() string {
	if len(r.Data) == 0 {
		return "None"
	}
	b, err := json.MarshalIndent(r.Data, "", "  ")
	if err != nil {
		return "None"
	}
	return string(b)
}

// Response is the raw reply of the reasoning service.
type Response struct {
	// Content is the reply text. Structured replies hold JSON.
	Content string
	// Usage is token and monetary usage of the call.
	Usage models.Usage
	// Latency is the wall time of the call.
	Latency time.Duration
	// Model is the model that served the call.
	Model string
}

// Service is the external reasoning service.
type Service interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f ServiceFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
