package agent

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/procure/internal/a2a"
	"github.com/dusk-indust/procure/internal/generator"
)

//go:embed agents.yaml
var agentsYAML []byte

// Registry is an immutable set of agents. It is safe for concurrent use.
type Registry struct {
	agents []Facts
	byID   map[string]int
}

// Query filters a Search. Empty fields match everything.
type Query struct {
	Role         string   `json:"role,omitempty"`
	Capability   []string `json:"capability,omitempty"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
}

// NewRegistry creates a Registry over agents. Agent ids must be unique.
func NewRegistry(agents []Facts) (*Registry, error) {
	r := &Registry{agents: agents, byID: make(map[string]int, len(agents))}
	for i, a := range agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agent: entry %d has no agent_id", i)
		}
		if _, dup := r.byID[a.ID]; dup {
			return nil, fmt.Errorf("agent: duplicate agent_id %q", a.ID)
		}
		r.byID[a.ID] = i
	}
	return r, nil
}

// Load decodes the embedded agent list.
func Load() (*Registry, error) {
	var agents []Facts
	if err := yaml.Unmarshal(agentsYAML, &agents); err != nil {
		return nil, fmt.Errorf("agent: decode agents.yaml: %w", err)
	}
	return NewRegistry(agents)
}

// Default returns the embedded registry. It panics if the embedded data is
// invalid, which tests rule out.
func Default() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// List returns every agent in registration order.
func (r *Registry) List() []Facts {
	return append([]Facts(nil), r.agents...)
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (Facts, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Facts{}, false
	}
	return r.agents[i], true
}

// Search returns agents matching q. Role matches case-insensitively, an
// agent matches Capability when it lists any of the values, and
// Jurisdiction matches the agent's own jurisdiction or a global agent.
func (r *Registry) Search(q Query) []Facts {
	out := []Facts{}
	for _, a := range r.agents {
		if q.Role != "" && !strings.EqualFold(string(a.Role), q.Role) {
			continue
		}
		if len(q.Capability) > 0 && !a.HasCapability(q.Capability...) {
			continue
		}
		if q.Jurisdiction != "" &&
			!strings.EqualFold(a.Jurisdiction, q.Jurisdiction) &&
			!strings.EqualFold(a.Jurisdiction, JurisdictionGlobal) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Handlers returns an A2A handler per agent, keyed by endpoint path.
func (r *Registry) Handlers(g generator.Generator, baseURL string) map[string]*a2a.Handler {
	out := make(map[string]*a2a.Handler, len(r.agents))
	for _, a := range r.agents {
		out[a.Endpoint] = a.Handler(g, baseURL)
	}
	return out
}
