package agent

import (
	"sort"
	"sync"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Role names for the built-in agents.
const (
	RoleResearcher    = "researcher"
	RoleStructurer    = "structurer"
	RoleWriter        = "writer"
	RoleTightener     = "tightener"
	RoleFactCheck     = "factcheck"
	RoleAccessibility = "accessibility"
	RoleReadability   = "readability"
	RoleConsistency   = "consistency"
	RoleSummarizer    = "summarizer"
)

// Constructor builds an agent from its dependencies.
type Constructor func(Deps) Agent

// Registry is an explicit registration table mapping role names to agent
// constructors. The default table is built once at process init; no dynamic
// loading or reflection.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// NewDefaultRegistry creates a registry with all built-in roles.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(RoleResearcher, func(d Deps) Agent { return NewResearcher(d) })
	r.Register(RoleStructurer, func(d Deps) Agent { return NewStructurer(d) })
	r.Register(RoleWriter, func(d Deps) Agent { return NewWriter(d) })
	r.Register(RoleTightener, func(d Deps) Agent { return NewTightener(d) })
	r.Register(RoleFactCheck, func(d Deps) Agent { return NewFactChecker(d) })
	r.Register(RoleAccessibility, func(d Deps) Agent { return NewAccessibilityLinter(d) })
	r.Register(RoleReadability, func(d Deps) Agent { return NewReadabilityAnalyzer(d) })
	r.Register(RoleConsistency, func(d Deps) Agent { return NewConsistencyChecker(d) })
	r.Register(RoleSummarizer, func(d Deps) Agent { return NewSummarizer(d) })
	return r
}

// Register adds or replaces a constructor for a role.
func (r *Registry) Register(role string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[role] = ctor
}

// Create builds the agent for a role.
func (r *Registry) Create(role string, deps Deps) (Agent, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[role]
	r.mu.RUnlock()
	if !ok {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "no agent registered for role: "+role)
	}
	return ctor(deps), nil
}

// Roles returns the registered role names, sorted.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]string, 0, len(r.constructors))
	for role := range r.constructors {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
