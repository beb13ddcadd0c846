// Package decompose turns a request and its data into self-contained
// subtasks.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Overhead phase names recorded in Decomposition.Phases.
const (
	PhaseAnalysis      = "analysis"
	PhaseDecomposition = "decomposition"
)

// Decomposition is the output of a Decomposer.
type Decomposition struct {
	Subtasks []models.Subtask
	// Analysis is set when a complexity analysis ran first.
	Analysis *models.ComplexityAnalysis
	// Phases holds reasoning usage per overhead phase.
	Phases map[string]models.Usage
}

// Decomposer breaks a request into subtasks.
type Decomposer interface {
	Decompose(ctx context.Context, request string, data map[string]any) (*Decomposition, error)
}

// decomposedTask is the JSON structure returned for a single subtask.
type decomposedTask struct {
	ID         string          `json:"id"`
	Objective  string          `json:"objective"`
	Capability string          `json:"capability"`
	Type       string          `json:"type"`
	Complexity string          `json:"estimated_complexity"`
	Data       json.RawMessage `json:"data"`
	DependsOn  []string        `json:"depends_on"`
}

// LLMDecomposer asks the reasoning service for the decomposition.
type LLMDecomposer struct {
	svc     reasoning.Service
	analyze bool
	logger  *slog.Logger
}

// Option configures an LLMDecomposer.
type Option func(*LLMDecomposer)

// WithComplexityAnalysis runs an analysis call before decomposing.
func WithComplexityAnalysis(enabled bool) Option {
	return func(d *LLMDecomposer) { d.analyze = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *LLMDecomposer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a new LLMDecomposer backed by svc.
func New(svc reasoning.Service, opts ...Option) *LLMDecomposer {
	d := &LLMDecomposer{
		svc:    svc,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose takes a request and returns validated subtasks with dependencies.
func (d *LLMDecomposer) Decompose(ctx context.Context, request string, data map[string]any) (*Decomposition, error) {
	out := &Decomposition{Phases: make(map[string]models.Usage)}

	if d.analyze {
		analysis, usage, err := AnalyzeComplexity(ctx, d.svc, request, data)
		out.Phases[PhaseAnalysis] = usage
		if err != nil {
			// The analysis only enriches the prompt; decomposition can go on.
			d.logger.Warn("complexity analysis failed", "error", err)
		} else {
			out.Analysis = analysis
			d.logger.Info("complexity analyzed",
				"complexity", analysis.Complexity,
				"suggested_strategy", analysis.SuggestedStrategy)
		}
	}

	resp, err := d.svc.Complete(ctx, reasoning.Request{
		TaskID: "decompose",
		System: decompositionSystem,
		Prompt: buildDecompositionPrompt(request, data, out.Analysis),
		Schema: reasoning.Schema{Name: PhaseDecomposition, Required: []string{"subtasks"}},
		Data:   data,
	})
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	out.Phases[PhaseDecomposition] = resp.Usage

	subtasks, err := ParseResponse(resp.Content)
	if err != nil {
		return nil, err
	}
	if out.Subtasks, err = Normalize(subtasks); err != nil {
		return nil, err
	}

	d.logger.Info("request decomposed", "subtasks", len(out.Subtasks))
	return out, nil
}

// ParseResponse parses the decomposition reply into subtasks. Subtasks
// without an ID get a generated one. Dependencies may name another subtask
// by ID or by objective; references matching neither are kept verbatim.
func ParseResponse(response string) ([]models.Subtask, error) {
	jsonStr, err := reasoning.ExtractJSON(response)
	if err != nil {
		return nil, &DecompositionError{Index: -1, Err: fmt.Errorf("%w (got %d chars): %q",
			err, len(response), reasoning.Truncate(response, 500))}
	}

	var decomposed []decomposedTask
	if strings.HasPrefix(jsonStr, "[") {
		err = json.Unmarshal([]byte(jsonStr), &decomposed)
	} else {
		var wrapper struct {
			Subtasks []decomposedTask `json:"subtasks"`
		}
		err = json.Unmarshal([]byte(jsonStr), &wrapper)
		decomposed = wrapper.Subtasks
	}
	if err != nil {
		return nil, &DecompositionError{Index: -1, Err: fmt.Errorf("unmarshal JSON: %w", err)}
	}

	if len(decomposed) == 0 {
		return nil, &DecompositionError{Index: -1, Err: ErrEmptyDecomposition}
	}

	objectiveToID := make(map[string]string)
	subtasks := make([]models.Subtask, len(decomposed))

	for i, dt := range decomposed {
		id := strings.TrimSpace(dt.ID)
		if id == "" {
			id = "task-" + uuid.New().String()[:8]
		}
		objectiveToID[strings.TrimSpace(dt.Objective)] = id

		capability := dt.Capability
		if capability == "" {
			capability = dt.Type
		}

		payload, err := decodeData(dt.Data)
		if err != nil {
			return nil, &DecompositionError{Index: i, Err: err}
		}

		subtasks[i] = models.Subtask{
			ID:         id,
			Objective:  dt.Objective,
			Capability: models.Capability(capability),
			Complexity: models.Complexity(strings.ToLower(strings.TrimSpace(dt.Complexity))),
			Data:       payload,
		}
	}

	ids := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		ids[st.ID] = true
	}
	for i, dt := range decomposed {
		for _, dep := range dt.DependsOn {
			dep = strings.TrimSpace(dep)
			if !ids[dep] {
				if id, ok := objectiveToID[dep]; ok {
					dep = id
				}
			}
			subtasks[i].DependsOn = append(subtasks[i].DependsOn, dep)
		}
	}

	return subtasks, nil
}

// decodeData accepts an object, null, or a JSON string holding an object.
// Any other value is wrapped under the "input" key.
func decodeData(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return obj, nil
		}
		return map[string]any{"input": s}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return map[string]any{"input": v}, nil
}
