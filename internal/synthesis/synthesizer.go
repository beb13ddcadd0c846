package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// NoResultsText is the narrative of a run where no subtask completed.
const NoResultsText = "Unable to complete the requested task."

const synthesisSystem = "You are extremely correct and diligent at synthesizing information from multiple sources into a coherent, concise summary."

const synthesisPrompt = `Synthesize the results below into one answer.

Results:
%s

Original request: %s

Provide a comprehensive summary that addresses the original request. Where a
result is marked failed or skipped, say what is missing instead of guessing.`

// Synthesizer makes the final reasoning call of a run.
type Synthesizer struct {
	svc       reasoning.Service
	maxTokens int64
	logger    *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMaxTokens caps the narrative length.
func WithMaxTokens(n int64) Option {
	return func(s *Synthesizer) { s.maxTokens = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a synthesizer backed by svc.
func New(svc reasoning.Service, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		svc:    svc,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entry is how a result is shown to the model.
type entry struct {
	TaskID     string            `json:"task_id"`
	Capability models.Capability `json:"capability"`
	Status     models.TaskStatus `json:"status"`
	Result     models.Payload    `json:"result,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// Synthesize produces the narrative for results. With no completed result
// it returns NoResultsText without calling the service. A failed call
// returns a degraded synthesis together with the error; the run outcome
// stays usable.
func (s *Synthesizer) Synthesize(ctx context.Context, request string, results []models.TaskResult) (models.Synthesis, error) {
	entries := make([]entry, 0, len(results))
	completed := 0
	for _, r := range results {
		e := entry{TaskID: r.TaskID, Capability: r.Capability, Status: r.Status, Reason: reason(r)}
		if r.Succeeded() {
			e.Result = r.Payload
			e.Confidence = r.Confidence
			completed++
		}
		entries = append(entries, e)
	}
	if completed == 0 {
		return models.Synthesis{Text: NoResultsText}, nil
	}

	body, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return degraded(results, err), fmt.Errorf("encode results: %w", err)
	}

	resp, err := s.svc.Complete(ctx, reasoning.Request{
		TaskID:    "synthesis",
		System:    synthesisSystem,
		Prompt:    fmt.Sprintf(synthesisPrompt, body, request),
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		s.logger.Warn("synthesis failed, returning degraded outcome", "error", err)
		out := degraded(results, err)
		if resp != nil {
			out.Usage = resp.Usage
		}
		return out, err
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		err := fmt.Errorf("%w: empty synthesis", reasoning.ErrReasoningService)
		out := degraded(results, err)
		out.Usage = resp.Usage
		return out, err
	}
	return models.Synthesis{Text: text, Usage: resp.Usage}, nil
}

// degraded lists the completed results in place of a narrative.
func degraded(results []models.TaskResult, cause error) models.Synthesis {
	var b strings.Builder
	b.WriteString("Synthesis unavailable. Completed results:\n")
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s, confidence %.2f)\n", r.TaskID, r.Capability, r.Confidence)
	}
	return models.Synthesis{
		Text:     strings.TrimRight(b.String(), "\n"),
		Degraded: true,
		Error:    cause.Error(),
	}
}
