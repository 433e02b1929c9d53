package agent

import (
	"context"
	"errors"
	"fmt"

	"jarvis/internal/models"
)

// Agent is the uniform contract every sub-agent implements. Execute never
// returns an error: failures are folded into the AgentResult so one agent
// cannot abort its siblings in a fan-out.
type Agent interface {
	// Kind identifies the agent.
	Kind() models.AgentKind
	// ResourceType names the cache bucket for this agent's results.
	// Empty means the agent opts out of caching.
	ResourceType() models.ResourceType
	// Execute runs the agent against the current request state.
	Execute(ctx context.Context, state *models.State) models.AgentResult
}

// ErrUnknownAgent is returned by the registry for a kind outside the
// closed set.
var ErrUnknownAgent = errors.New("agent: unknown agent kind")

// Registry holds the fixed set of agents. It is built once at startup and
// read-only afterwards.
type Registry struct {
	agents map[models.AgentKind]Agent
}

// NewRegistry builds a registry from the given agents. Registering the
// same kind twice is a programming error.
func NewRegistry(agents ...Agent) (*Registry, error) {
	m := make(map[models.AgentKind]Agent, len(agents))
	for _, a := range agents {
		if _, dup := m[a.Kind()]; dup {
			return nil, fmt.Errorf("agent: duplicate registration for %q", a.Kind())
		}
		m[a.Kind()] = a
	}
	return &Registry{agents: m}, nil
}

// Get returns the agent for a kind, or ErrUnknownAgent.
func (r *Registry) Get(kind models.AgentKind) (Agent, error) {
	a, ok := r.agents[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, kind)
	}
	return a, nil
}

// ResourcesFor maps required agents to their declared resource types,
// deduplicated, skipping agents that opt out of caching.
func (r *Registry) ResourcesFor(kinds []models.AgentKind) []models.ResourceType {
	seen := make(map[models.ResourceType]bool)
	var resources []models.ResourceType
	for _, kind := range kinds {
		a, ok := r.agents[kind]
		if !ok {
			continue
		}
		if rt := a.ResourceType(); rt != "" && !seen[rt] {
			seen[rt] = true
			resources = append(resources, rt)
		}
	}
	return resources
}
