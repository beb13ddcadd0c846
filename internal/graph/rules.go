package graph

import (
	"fmt"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Rule states that subtasks of the Consumer capability normally depend on
// subtasks of the Producer capability.
type Rule struct {
	Consumer models.Capability
	Producer models.Capability
	Reason   string
}

// RuleTable is the set of capability rules consulted by Analyze. Rules never
// add edges; they only produce risk factors.
type RuleTable []Rule

// DefaultRules encodes the usual flow of information between capabilities.
var DefaultRules = RuleTable{
	{Consumer: models.CapabilityAnalysis, Producer: models.CapabilityResearch, Reason: "analysis usually consumes research findings"},
	{Consumer: models.CapabilitySynthesis, Producer: models.CapabilityResearch, Reason: "synthesis usually merges research findings"},
	{Consumer: models.CapabilitySynthesis, Producer: models.CapabilityAnalysis, Reason: "synthesis usually merges analysis results"},
	{Consumer: models.CapabilityValidation, Producer: models.CapabilityGeneration, Reason: "validation usually checks generated content"},
}

// ProducersOf returns the capabilities a consumer normally depends on.
func (t RuleTable) ProducersOf(consumer models.Capability) []Rule {
	var out []Rule
	for _, r := range t {
		if r.Consumer == consumer {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate checks the graph against the table and returns risk factors in
// decomposition order. Two situations are reported: a consumer that does not
// depend, even transitively, on any present producer, and a producer that
// depends on its own consumer.
func (t RuleTable) Evaluate(g *DependencyGraph) []string {
	present := make(map[models.Capability]bool)
	for _, id := range g.order {
		present[g.nodes[id].Capability] = true
	}

	var risks []string
	for _, id := range g.order {
		st := g.nodes[id]
		ancestors := g.Ancestors(id)

		for _, r := range t.ProducersOf(st.Capability) {
			if !present[r.Producer] {
				continue
			}
			found := false
			for a := range ancestors {
				if g.nodes[a].Capability == r.Producer {
					found = true
					break
				}
			}
			if !found {
				risks = append(risks, fmt.Sprintf("%s task %s does not depend on any %s task (%s)",
					st.Capability, id, r.Producer, r.Reason))
			}
		}

		for _, depID := range g.edges[id] {
			dep := g.nodes[depID]
			for _, r := range t.ProducersOf(dep.Capability) {
				if r.Producer == st.Capability {
					risks = append(risks, fmt.Sprintf("%s task %s depends on %s task %s, against the usual direction",
						st.Capability, id, dep.Capability, depID))
				}
			}
		}
	}
	return risks
}
