package core

// BackendKind identifies how a model is reached.
type BackendKind string

const (
	BackendCloud     BackendKind = "cloud"     // hosted API, needs a credential
	BackendLocal     BackendKind = "local"     // local inference server
	BackendSimulated BackendKind = "simulated" // deterministic canned responses
)

// SpeedTier classifies model latency.
type SpeedTier string

const (
	SpeedSlow   SpeedTier = "slow"
	SpeedMedium SpeedTier = "medium"
	SpeedFast   SpeedTier = "fast"
)

// QualityTier classifies model output quality.
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// CapabilityGeneral marks a model as usable for any agent role.
const CapabilityGeneral = "general"

// ModelDescriptor describes a registered model backend. Descriptors are
// immutable once registered; the registry owns them for the process lifetime.
type ModelDescriptor struct {
	Name         string      `json:"name" yaml:"name"`
	Kind         BackendKind `json:"kind" yaml:"kind"`
	Endpoint     string      `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKeyEnv    string      `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	MaxTokens    int         `json:"max_tokens" yaml:"max_tokens"`
	Temperature  float64     `json:"temperature" yaml:"temperature"`
	Capabilities []string    `json:"capabilities" yaml:"capabilities"`
	CostPerToken float64     `json:"cost_per_token" yaml:"cost_per_token"`
	Speed        SpeedTier   `json:"speed" yaml:"speed"`
	Quality      QualityTier `json:"quality" yaml:"quality"`

	// Resource requirements for local backends, checked by the capability probe.
	MinMemoryMB uint64 `json:"min_memory_mb,omitempty" yaml:"min_memory_mb,omitempty"`
	RequiresGPU bool   `json:"requires_gpu,omitempty" yaml:"requires_gpu,omitempty"`
}

// IsLocal reports whether the descriptor runs on the local host.
// Simulated backends count as local: they never leave the process.
func (d ModelDescriptor) IsLocal() bool {
	return d.Kind == BackendLocal || d.Kind == BackendSimulated
}

// SupportsRole reports whether the model's capability tags cover a role.
func (d ModelDescriptor) SupportsRole(role string) bool {
	for _, cap := range d.Capabilities {
		if cap == role || cap == CapabilityGeneral {
			return true
		}
	}
	return false
}

// Validate checks descriptor invariants before registration.
func (d ModelDescriptor) Validate() error {
	if d.Name == "" {
		return ErrValidation(CodeInvalidConfig, "model name cannot be empty")
	}
	switch d.Kind {
	case BackendCloud, BackendLocal, BackendSimulated:
	default:
		return ErrValidation(CodeInvalidConfig, "unknown backend kind: "+string(d.Kind))
	}
	if d.Kind != BackendSimulated && d.Endpoint == "" {
		return ErrValidation(CodeInvalidConfig, "model "+d.Name+" has no endpoint")
	}
	return nil
}
