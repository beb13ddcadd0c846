package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Payload is the typed, schema-checked reply of a capability handler.
// Each capability has exactly one concrete payload type.
type Payload interface {
	// Kind returns the capability whose schema produced the payload.
	Kind() Capability
	// Assess returns the self-reported confidence of the reply.
	Assess() Assessment
	// Validate returns schema violations in the decoded values.
	Validate() []string
}

// Assessment is the confidence block every payload carries.
type Assessment struct {
	Confidence          float64 `json:"confidence"`
	ConfidenceReasoning string  `json:"confidence_reasoning,omitempty"`
}

// Assess returns the assessment itself so embedding types satisfy Payload.
func (a Assessment) Assess() Assessment { return a }

func (a Assessment) violations() []string {
	if a.Confidence < 0 || a.Confidence > 1 {
		return []string{fmt.Sprintf("confidence %.3f outside [0, 1]", a.Confidence)}
	}
	return nil
}

// Record is one entry of an analysis list. Replies may use a bare string,
// which is stored under the "description" key.
type Record map[string]any

// UnmarshalJSON accepts either an object or a string.
func (r *Record) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Record{"description": s}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("record must be an object or string: %w", err)
	}
	*r = Record(m)
	return nil
}

// String renders the record as "key: value" pairs in key order.
func (r Record) String() string {
	if d, ok := r["description"].(string); ok && len(r) == 1 {
		return d
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, r[k]))
	}
	return strings.Join(parts, "; ")
}

// ResearchPayload is the research schema.
type ResearchPayload struct {
	Findings []string `json:"findings"`
	Sources  []string `json:"sources"`
	Assessment
}

func (*ResearchPayload) Kind() Capability { return CapabilityResearch }

func (p *ResearchPayload) Validate() []string {
	v := p.violations()
	if p.Findings == nil {
		v = append(v, "findings must be a list")
	}
	if p.Sources == nil {
		v = append(v, "sources must be a list")
	}
	return v
}

// AnalysisPayload is the analysis schema.
type AnalysisPayload struct {
	Patterns        []Record `json:"patterns"`
	Insights        []Record `json:"insights"`
	Recommendations []Record `json:"recommendations"`
	Assessment
}

func (*AnalysisPayload) Kind() Capability { return CapabilityAnalysis }

func (p *AnalysisPayload) Validate() []string {
	v := p.violations()
	if p.Patterns == nil {
		v = append(v, "patterns must be a list")
	}
	if p.Insights == nil {
		v = append(v, "insights must be a list")
	}
	if p.Recommendations == nil {
		v = append(v, "recommendations must be a list")
	}
	return v
}

// SynthesisPayload is the synthesis schema.
type SynthesisPayload struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	Conclusions []string `json:"conclusions"`
	Assessment
}

func (*SynthesisPayload) Kind() Capability { return CapabilitySynthesis }

func (p *SynthesisPayload) Validate() []string {
	v := p.violations()
	if strings.TrimSpace(p.Summary) == "" {
		v = append(v, "summary must not be empty")
	}
	if p.KeyPoints == nil {
		v = append(v, "key_points must be a list")
	}
	return v
}

// ValidationPayload is the validation schema.
type ValidationPayload struct {
	IsValid     bool     `json:"is_valid"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Assessment
}

func (*ValidationPayload) Kind() Capability { return CapabilityValidation }

func (p *ValidationPayload) Validate() []string {
	v := p.violations()
	if p.Issues == nil {
		v = append(v, "issues must be a list")
	}
	return v
}

// GenericPayload carries free-form output for generation and generic tasks.
type GenericPayload struct {
	Capability Capability      `json:"-"`
	Output     json.RawMessage `json:"output"`
	Assessment
}

func (p *GenericPayload) Kind() Capability {
	if p.Capability == "" {
		return CapabilityGeneric
	}
	return p.Capability
}

func (p *GenericPayload) Validate() []string {
	v := p.violations()
	if len(p.Output) == 0 || string(p.Output) == "null" {
		v = append(v, "output must be present")
	}
	return v
}

// NewPayload returns an empty payload for the capability's schema.
// Capabilities without a dedicated schema use GenericPayload.
func NewPayload(c Capability) Payload {
	switch c {
	case CapabilityResearch:
		return &ResearchPayload{}
	case CapabilityAnalysis:
		return &AnalysisPayload{}
	case CapabilitySynthesis:
		return &SynthesisPayload{}
	case CapabilityValidation:
		return &ValidationPayload{}
	default:
		return &GenericPayload{Capability: c}
	}
}

// DecodePayload unmarshals raw JSON into the capability's payload type.
func DecodePayload(c Capability, raw []byte) (Payload, error) {
	p := NewPayload(c)
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}
