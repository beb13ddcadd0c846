package reasoning

import (
	"strings"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// ModelPricing contains pricing per 1M tokens for a model.
type ModelPricing struct {
	InputPerMillion  float64 // Cost per 1M input tokens
	OutputPerMillion float64 // Cost per 1M output tokens
}

// DefaultModelPricing contains pricing for known Claude models.
var DefaultModelPricing = map[string]ModelPricing{
	"claude-opus-4-5-20251101":   {InputPerMillion: 5.00, OutputPerMillion: 25.00},
	"claude-opus-4-1-20250805":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-sonnet-4-20250514":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-7-sonnet-20250219": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 1.00, OutputPerMillion: 5.00},
	"claude-3-5-haiku-20241022":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
}

// family pricing is used for model ids missing from the table, such as
// Bedrock inference profiles or newer snapshots.
var familyPricing = []struct {
	marker  string
	pricing ModelPricing
}{
	{"opus", ModelPricing{InputPerMillion: 15.00, OutputPerMillion: 75.00}},
	{"sonnet", ModelPricing{InputPerMillion: 3.00, OutputPerMillion: 15.00}},
	{"haiku", ModelPricing{InputPerMillion: 0.80, OutputPerMillion: 4.00}},
}

// PricingFor returns the pricing of a model id. Unknown ids fall back to
// sonnet pricing.
func PricingFor(model string) ModelPricing {
	if p, ok := DefaultModelPricing[model]; ok {
		return p
	}
	for id, p := range DefaultModelPricing {
		if strings.Contains(model, id) {
			return p
		}
	}
	lower := strings.ToLower(model)
	for _, f := range familyPricing {
		if strings.Contains(lower, f.marker) {
			return f.pricing
		}
	}
	return familyPricing[1].pricing
}

// Cost returns the dollar cost of the given token counts.
func (p ModelPricing) Cost(input, output int64) float64 {
	return float64(input)/1_000_000*p.InputPerMillion + float64(output)/1_000_000*p.OutputPerMillion
}

// UsageFor builds a Usage with cost priced for model.
func UsageFor(model string, input, output int64) models.Usage {
	return models.Usage{
		InputTokens:  input,
		OutputTokens: output,
		Cost:         PricingFor(model).Cost(input, output),
	}
}
