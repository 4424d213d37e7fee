// Package agent holds the AgentFacts registry: descriptive metadata for
// every agent taking part in a procurement run, with discovery by role,
// capability, and jurisdiction. Each agent can also be served over A2A,
// backed by a content generator.
package agent

import (
	"strings"

	"github.com/dusk-indust/procure/internal/a2a"
	"github.com/dusk-indust/procure/internal/generator"
)

// Role identifies an agent type.
type Role string

const (
	RoleProcurement  Role = "Procurement"
	RoleSupplier     Role = "Supplier"
	RoleManufacturer Role = "Manufacturer"
	RoleLogistics    Role = "Logistics"
	RoleRetailer     Role = "Retailer"
)

// JurisdictionGlobal matches every jurisdiction in a search.
const JurisdictionGlobal = "Global"

// Version is reported in agent cards.
var Version = "dev"

// Facts describes one agent.
type Facts struct {
	ID           string         `json:"agent_id" yaml:"agent_id"`
	Name         string         `json:"name" yaml:"name"`
	Role         Role           `json:"role" yaml:"role"`
	Capabilities []string       `json:"capabilities" yaml:"capabilities"`
	Endpoint     string         `json:"endpoint" yaml:"endpoint"`
	Policy       map[string]any `json:"policy" yaml:"policy"`
	Jurisdiction string         `json:"jurisdiction" yaml:"jurisdiction"`
	Framework    string         `json:"framework" yaml:"framework"`
	Description  string         `json:"description" yaml:"description"`
}

// HasCapability reports whether f lists any of caps.
func (f Facts) HasCapability(caps ...string) bool {
	for _, c := range caps {
		for _, have := range f.Capabilities {
			if have == c {
				return true
			}
		}
	}
	return false
}

// Card returns the A2A agent card of f, with its endpoint resolved
// against baseURL.
func (f Facts) Card(baseURL string) a2a.AgentCard {
	skills := make([]a2a.AgentSkill, 0, len(f.Capabilities))
	for _, c := range f.Capabilities {
		skills = append(skills, a2a.AgentSkill{
			ID:          c,
			Name:        title(c),
			Description: f.Name + ": " + strings.ReplaceAll(c, "_", " "),
			Tags:        []string{strings.ToLower(string(f.Role)), strings.ToLower(f.Jurisdiction)},
		})
	}
	return a2a.AgentCard{
		Name:        f.Name,
		Description: f.Description,
		Version:     Version,
		Interfaces: []a2a.AgentInterface{{
			URL:             strings.TrimRight(baseURL, "/") + f.Endpoint,
			ProtocolBinding: "JSONRPC",
			ProtocolVersion: "0.3",
		}},
		Provider:           &a2a.AgentProvider{Organization: "procure"},
		DefaultInputModes:  []string{"application/json", "text/plain"},
		DefaultOutputModes: []string{"application/json"},
		Skills:             skills,
	}
}

// Handler serves f as an A2A agent whose answers come from g.
func (f Facts) Handler(g generator.Generator, baseURL string) *a2a.Handler {
	return generator.NewA2AHandler(g, f.Card(baseURL))
}

// title turns "quality_testing" into "Quality Testing".
func title(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
