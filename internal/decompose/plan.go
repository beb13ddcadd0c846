package decompose

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// PlanFile is the on-disk form of a decomposition. JSON files are accepted
// too since JSON is valid YAML.
type PlanFile struct {
	Request  string           `yaml:"request,omitempty"`
	Subtasks []models.Subtask `yaml:"subtasks"`
}

// PlanDecomposer serves a fixed decomposition loaded from a plan file.
type PlanDecomposer struct {
	plan PlanFile
}

// LoadPlan reads a plan file.
func LoadPlan(path string) (*PlanDecomposer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return ParsePlan(b)
}

// ParsePlan parses plan file content.
func ParsePlan(b []byte) (*PlanDecomposer, error) {
	var pf PlanFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, &DecompositionError{Index: -1, Err: fmt.Errorf("parse plan: %w", err)}
	}
	return &PlanDecomposer{plan: pf}, nil
}

// NewPlanDecomposer wraps an in-memory list of subtasks.
func NewPlanDecomposer(subtasks []models.Subtask) *PlanDecomposer {
	return &PlanDecomposer{plan: PlanFile{Subtasks: subtasks}}
}

// Decompose returns the plan's subtasks. Subtasks without their own data
// receive a copy of the request data so each stays self-contained.
func (p *PlanDecomposer) Decompose(_ context.Context, _ string, data map[string]any) (*Decomposition, error) {
	subtasks := make([]models.Subtask, len(p.plan.Subtasks))
	for i, st := range p.plan.Subtasks {
		if st.Data == nil && len(data) > 0 {
			st = st.WithData(data)
		} else {
			st = st.WithData(nil)
		}
		subtasks[i] = st
	}

	normalized, err := Normalize(subtasks)
	if err != nil {
		return nil, err
	}
	return &Decomposition{Subtasks: normalized, Phases: map[string]models.Usage{}}, nil
}

// MarshalPlan renders subtasks as a plan file.
func MarshalPlan(request string, subtasks []models.Subtask) ([]byte, error) {
	return yaml.Marshal(PlanFile{Request: request, Subtasks: subtasks})
}
