// Package router assigns model backends to agent roles. A static registry
// holds the model catalog, named policies express per-role preferences, and
// the router ranks available candidates when no preference applies.
package router

import (
	"sync"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

// CredentialSource resolves API credentials for cloud models.
type CredentialSource interface {
	Lookup(envVar string) (string, bool)
}

// CapabilityProbe answers whether the local host can run a model. The
// diagnostics package provides the real implementation; tests stub it.
type CapabilityProbe interface {
	CanRun(model core.ModelDescriptor) bool
}

// Registry is the static model catalog. All registration happens during
// startup; afterwards the registry is read-only and safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]core.ModelDescriptor
	order  []string

	creds  CredentialSource
	probe  CapabilityProbe
	logger *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(creds CredentialSource, probe CapabilityProbe, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		models: make(map[string]core.ModelDescriptor),
		creds:  creds,
		probe:  probe,
		logger: logger,
	}
}

// Register adds a model to the catalog. Names must be unique.
func (r *Registry) Register(model core.ModelDescriptor) error {
	if err := model.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[model.Name]; exists {
		return core.ErrValidation(core.CodeDuplicateModel, "model already registered: "+model.Name)
	}
	r.models[model.Name] = model
	r.order = append(r.order, model.Name)

	r.logger.Debug("model registered",
		"model", model.Name,
		"kind", string(model.Kind),
		"quality", string(model.Quality),
		"speed", string(model.Speed))
	return nil
}

// Get returns a model by name.
func (r *Registry) Get(name string) (core.ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// List returns all models in registration order.
func (r *Registry) List() []core.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.ModelDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// IsAvailable reports whether a model can serve a request right now:
// the locality constraint holds, cloud backends have a credential, and
// local backends pass the host capability probe.
func (r *Registry) IsAvailable(model core.ModelDescriptor, ctx core.TaskContext) bool {
	if ctx.LocalOnly && !model.IsLocal() {
		return false
	}

	switch model.Kind {
	case core.BackendSimulated:
		return true
	case core.BackendCloud:
		if r.creds == nil {
			return false
		}
		key, ok := r.creds.Lookup(model.APIKeyEnv)
		return ok && key != ""
	case core.BackendLocal:
		if r.probe == nil {
			return true
		}
		return r.probe.CanRun(model)
	default:
		return false
	}
}

// Available returns all models that pass IsAvailable for the context, in
// registration order.
func (r *Registry) Available(ctx core.TaskContext) []core.ModelDescriptor {
	var out []core.ModelDescriptor
	for _, m := range r.List() {
		if r.IsAvailable(m, ctx) {
			out = append(out, m)
		}
	}
	return out
}
