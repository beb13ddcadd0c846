package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Handler turns a subtask of one capability into a reasoning request and
// validates the reply against the capability's schema.
type Handler interface {
	Capability() models.Capability
	Schema() reasoning.Schema
	BuildRequest(task models.Subtask) reasoning.Request
	// Parse returns the typed payload, or the schema violations found.
	Parse(content string) (models.Payload, []string)
}

// SchemaHandler is a Handler driven by a role description and a schema.
type SchemaHandler struct {
	capability models.Capability
	role       string
	focus      string
	schema     reasoning.Schema
}

// NewSchemaHandler creates a handler for capability. Role is the agent
// description and focus what its reply should contain.
func NewSchemaHandler(capability models.Capability, role, focus string, schema reasoning.Schema) *SchemaHandler {
	return &SchemaHandler{capability: capability, role: role, focus: focus, schema: schema}
}

func (h *SchemaHandler) Capability() models.Capability { return h.capability }

func (h *SchemaHandler) Schema() reasoning.Schema { return h.schema }

const subagentPrompt = `You are a specialized %s.

Task: %s
Data:
` + "```" + `
%s
` + "```" + `

%s

Respond ONLY with a single JSON object, no prose and no code fences, in exactly this format:
%s

"confidence" is a number from 0.0 to 1.0 reflecting how complete the data was, how clear the task was, and any assumptions you made. Explain it in "confidence_reasoning".`

// BuildRequest composes the prompt from the objective and the data payload.
// The subtask's data map is read, never modified.
func (h *SchemaHandler) BuildRequest(task models.Subtask) reasoning.Request {
	req := reasoning.Request{
		TaskID: task.ID,
		Schema: h.schema,
		Data:   task.Data,
	}
	req.Prompt = fmt.Sprintf(subagentPrompt, h.role, task.Objective, req.DataJSON(), h.focus, h.schema.Example)
	return req
}

// Parse extracts the JSON reply, checks required fields, decodes it into the
// capability's payload type and validates values.
func (h *SchemaHandler) Parse(content string) (models.Payload, []string) {
	jsonStr, err := reasoning.ExtractJSON(content)
	if err != nil {
		return nil, []string{err.Error()}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return nil, []string{fmt.Sprintf("reply is not a JSON object: %v", err)}
	}

	var violations []string
	for _, name := range h.schema.Required {
		if _, ok := fields[name]; !ok {
			violations = append(violations, fmt.Sprintf("missing field %q", name))
		}
	}
	if len(violations) > 0 {
		return nil, violations
	}

	payload, err := models.DecodePayload(h.capability, []byte(jsonStr))
	if err != nil {
		return nil, []string{fmt.Sprintf("wrong field type: %v", err)}
	}
	if v := payload.Validate(); len(v) > 0 {
		return nil, v
	}
	return payload, nil
}

var assessmentFields = []string{"confidence", "confidence_reasoning"}

func required(fields ...string) []string {
	return append(fields, assessmentFields...)
}

// DefaultHandlers returns the built-in handler of every known capability.
func DefaultHandlers() []Handler {
	return []Handler{
		NewSchemaHandler(models.CapabilityResearch,
			"research agent",
			"Research the task using the data and report what you found and where it came from.",
			reasoning.Schema{
				Name:     string(models.CapabilityResearch),
				Required: required("findings", "sources"),
				Example:  `{"findings": ["..."], "sources": ["..."], "confidence": 0.0, "confidence_reasoning": "..."}`,
			}),
		NewSchemaHandler(models.CapabilityAnalysis,
			"analysis agent",
			"Analyze the data. Report patterns, insights and actionable recommendations as objects.",
			reasoning.Schema{
				Name:     string(models.CapabilityAnalysis),
				Required: required("patterns", "insights", "recommendations"),
				Example:  `{"patterns": [{"name": "...", "evidence": "..."}], "insights": [{"description": "..."}], "recommendations": [{"action": "...", "rationale": "..."}], "confidence": 0.0, "confidence_reasoning": "..."}`,
			}),
		NewSchemaHandler(models.CapabilitySynthesis,
			"synthesis agent",
			"Merge the inputs into one coherent summary with key points and conclusions.",
			reasoning.Schema{
				Name:     string(models.CapabilitySynthesis),
				Required: required("summary", "key_points", "conclusions"),
				Example:  `{"summary": "...", "key_points": ["..."], "conclusions": ["..."], "confidence": 0.0, "confidence_reasoning": "..."}`,
			}),
		NewSchemaHandler(models.CapabilityValidation,
			"validation agent",
			"Check the data for correctness and consistency. List every issue and how to fix it.",
			reasoning.Schema{
				Name:     string(models.CapabilityValidation),
				Required: required("is_valid", "issues", "suggestions"),
				Example:  `{"is_valid": true, "issues": ["..."], "suggestions": ["..."], "confidence": 0.0, "confidence_reasoning": "..."}`,
			}),
		genericHandler(models.CapabilityGeneration, "generation agent",
			"Produce the requested content and put it in \"output\"."),
		genericHandler(models.CapabilityGeneric, "general-purpose agent",
			"Complete the task and put the result in \"output\"."),
	}
}

func genericHandler(c models.Capability, role, focus string) *SchemaHandler {
	return NewSchemaHandler(c, role, focus, reasoning.Schema{
		Name:     string(c),
		Required: required("output"),
		Example:  `{"output": "...", "confidence": 0.0, "confidence_reasoning": "..."}`,
	})
}
