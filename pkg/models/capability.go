package models

import "strings"

// Capability is the category of handler a subtask is routed to.
type Capability string

const (
	// CapabilityResearch gathers findings and sources.
	CapabilityResearch Capability = "research"
	// CapabilityAnalysis extracts patterns, insights and recommendations.
	CapabilityAnalysis Capability = "analysis"
	// CapabilitySynthesis merges several inputs into a summary.
	CapabilitySynthesis Capability = "synthesis"
	// CapabilityValidation checks an input for correctness.
	CapabilityValidation Capability = "validation"
	// CapabilityGeneration produces new content.
	CapabilityGeneration Capability = "generation"
	// CapabilityGeneric is used when no specific capability was requested.
	CapabilityGeneric Capability = "generic"
)

// KnownCapabilities lists every capability with a built-in handler.
var KnownCapabilities = []Capability{
	CapabilityResearch,
	CapabilityAnalysis,
	CapabilitySynthesis,
	CapabilityValidation,
	CapabilityGeneration,
	CapabilityGeneric,
}

// Valid returns true if the capability is a known value.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityResearch, CapabilityAnalysis, CapabilitySynthesis,
		CapabilityValidation, CapabilityGeneration, CapabilityGeneric:
		return true
	default:
		return false
	}
}

// NormalizeCapability folds case and whitespace of a raw tag and maps it onto
// a known capability. Empty tags become generic. Unrecognized tags are
// returned verbatim so routing can reject them later.
func NormalizeCapability(raw string) Capability {
	folded := strings.ToLower(strings.TrimSpace(raw))
	if folded == "" {
		return CapabilityGeneric
	}
	if c := Capability(folded); c.Valid() {
		return c
	}
	return Capability(raw)
}

// Complexity is the decomposer's estimate of how hard a subtask is.
type Complexity string

const (
	// ComplexityLow is a small, mechanical subtask.
	ComplexityLow Complexity = "low"
	// ComplexityMedium is the default estimate.
	ComplexityMedium Complexity = "medium"
	// ComplexityHigh is a subtask that needs careful reasoning.
	ComplexityHigh Complexity = "high"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	default:
		return false
	}
}

// Priority orders dispatch submission inside a level.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns a sortable weight, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}
