// Package llm provides model backends behind a single Caller interface.
// Agents depend only on Caller; the factory picks the transport from the
// model descriptor's backend kind.
package llm

import (
	"context"
	"time"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

// CallOptions carries per-call parameters.
type CallOptions struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Caller executes a single prompt against a model and returns raw text.
type Caller interface {
	// Call blocks until the model responds, the timeout elapses, or ctx is
	// cancelled. Errors are core.DomainError values so retry policy can
	// classify them.
	Call(ctx context.Context, prompt string, opts CallOptions) (string, error)

	// Model returns the descriptor this caller is bound to.
	Model() core.ModelDescriptor
}

// CredentialSource resolves API credentials for cloud models. The default
// reads process environment variables; tests inject a map.
type CredentialSource interface {
	Lookup(envVar string) (string, bool)
}

// Factory builds callers for model descriptors.
type Factory struct {
	creds  CredentialSource
	logger *logging.Logger
}

// NewFactory creates a caller factory.
func NewFactory(creds CredentialSource, logger *logging.Logger) *Factory {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Factory{creds: creds, logger: logger}
}

// For returns a caller for the given model.
func (f *Factory) For(model core.ModelDescriptor) (Caller, error) {
	switch model.Kind {
	case core.BackendSimulated:
		return NewSimCaller(model), nil
	case core.BackendCloud, core.BackendLocal:
		return NewHTTPCaller(model, f.creds, f.logger), nil
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig, "unknown backend kind: "+string(model.Kind))
	}
}

// EnvCredentials reads credentials from the process environment.
type EnvCredentials struct{}

func (EnvCredentials) Lookup(envVar string) (string, bool) {
	return lookupEnv(envVar)
}

// MapCredentials serves credentials from a fixed map, for tests.
type MapCredentials map[string]string

func (m MapCredentials) Lookup(envVar string) (string, bool) {
	v, ok := m[envVar]
	return v, ok
}
