package decompose

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

const samplePlan = `request: compare providers
subtasks:
  - id: r1
    objective: Research provider A
    capability: research
    data:
      provider: A
  - id: r2
    objective: Research provider B
    capability: Research
  - id: a1
    objective: Compare A and B
    capability: analysis
    complexity: high
    depends_on: [r1, r2]
`

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	p, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}

	reqData := map[string]any{"budget": 100}
	out, err := p.Decompose(context.Background(), "ignored", reqData)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	if len(out.Subtasks) != 3 {
		t.Fatalf("len(Subtasks) = %d, want 3", len(out.Subtasks))
	}
	if out.Subtasks[0].Data["provider"] != "A" {
		t.Errorf("r1 data = %v", out.Subtasks[0].Data)
	}
	if _, ok := out.Subtasks[0].Data["budget"]; ok {
		t.Error("subtask with its own data should not receive request data")
	}
	if out.Subtasks[1].Data["budget"] != 100 {
		t.Errorf("r2 data = %v, want request data", out.Subtasks[1].Data)
	}
	if out.Subtasks[1].Capability != models.CapabilityResearch {
		t.Errorf("r2 capability = %q, want normalized research", out.Subtasks[1].Capability)
	}
	if out.Subtasks[2].Priority != models.PriorityHigh {
		t.Errorf("a1 priority = %q, want high", out.Subtasks[2].Priority)
	}

	reqData["budget"] = 5
	if out.Subtasks[1].Data["budget"] != 100 {
		t.Error("subtask data must not alias request data")
	}
}

func TestMarshalPlanRoundTrip(t *testing.T) {
	in := []models.Subtask{
		{ID: "a", Objective: "x", Capability: models.CapabilityResearch, Complexity: models.ComplexityLow, Priority: models.PriorityMedium},
		{ID: "b", Objective: "y", Capability: models.CapabilityAnalysis, Complexity: models.ComplexityMedium, Priority: models.PriorityMedium, DependsOn: []string{"a"}},
	}
	b, err := MarshalPlan("req", in)
	if err != nil {
		t.Fatalf("MarshalPlan: %v", err)
	}
	p, err := ParsePlan(b)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	out, err := p.Decompose(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(out.Subtasks) != 2 || out.Subtasks[1].DependsOn[0] != "a" {
		t.Errorf("round trip = %+v", out.Subtasks)
	}
}

func TestParsePlan_Invalid(t *testing.T) {
	if _, err := ParsePlan([]byte("subtasks: [unterminated")); err == nil {
		t.Error("expected parse error")
	}
}
