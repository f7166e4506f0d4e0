// Package config loads deckhand configuration from defaults, an optional
// YAML file, environment variables (DECKHAND_*), and CLI flag bindings, in
// ascending precedence.
package config

import (
	"fmt"
	"time"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Config is the root configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Generation GenerationConfig `mapstructure:"generation"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	Models     []ModelConfig    `mapstructure:"models"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// StorageConfig controls where decks and history are persisted.
type StorageConfig struct {
	Dir       string `mapstructure:"dir"`
	HistoryDB string `mapstructure:"history_db"`
}

// GenerationConfig carries pipeline defaults.
type GenerationConfig struct {
	DefaultSlides int           `mapstructure:"default_slides"`
	DefaultPolicy string        `mapstructure:"default_policy"`
	LocalOnly     bool          `mapstructure:"local_only"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBaseWait time.Duration `mapstructure:"retry_base_wait"`
}

// RoutingConfig tunes model selection.
type RoutingConfig struct {
	PoliciesFile  string  `mapstructure:"policies_file"`
	QualityWeight float64 `mapstructure:"quality_weight"`
	SpeedWeight   float64 `mapstructure:"speed_weight"`
	CostWeight    float64 `mapstructure:"cost_weight"`
}

// ModelConfig describes one catalog entry in the config file.
type ModelConfig struct {
	Name         string   `mapstructure:"name"`
	Kind         string   `mapstructure:"kind"`
	Endpoint     string   `mapstructure:"endpoint"`
	APIKeyEnv    string   `mapstructure:"api_key_env"`
	MaxTokens    int      `mapstructure:"max_tokens"`
	Temperature  float64  `mapstructure:"temperature"`
	Capabilities []string `mapstructure:"capabilities"`
	CostPerToken float64  `mapstructure:"cost_per_token"`
	Speed        string   `mapstructure:"speed"`
	Quality      string   `mapstructure:"quality"`
	MinMemoryMB  uint64   `mapstructure:"min_memory_mb"`
	RequiresGPU  bool     `mapstructure:"requires_gpu"`
}

// Descriptor converts a catalog entry to the routing descriptor.
func (m ModelConfig) Descriptor() core.ModelDescriptor {
	return core.ModelDescriptor{
		Name:         m.Name,
		Kind:         core.BackendKind(m.Kind),
		Endpoint:     m.Endpoint,
		APIKeyEnv:    m.APIKeyEnv,
		MaxTokens:    m.MaxTokens,
		Temperature:  m.Temperature,
		Capabilities: m.Capabilities,
		CostPerToken: m.CostPerToken,
		Speed:        core.SpeedTier(m.Speed),
		Quality:      core.QualityTier(m.Quality),
		MinMemoryMB:  m.MinMemoryMB,
		RequiresGPU:  m.RequiresGPU,
	}
}

// Descriptors converts the whole catalog.
func (c *Config) Descriptors() []core.ModelDescriptor {
	out := make([]core.ModelDescriptor, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, m.Descriptor())
	}
	return out
}

// Validate checks cross-field invariants. Model descriptors are validated
// again at registration; this catches config mistakes early with file-level
// context.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	if c.Generation.DefaultSlides < 3 || c.Generation.DefaultSlides > 50 {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("default slide count %d outside [3, 50]", c.Generation.DefaultSlides))
	}
	if c.Generation.MaxRetries < 1 {
		return core.ErrValidation(core.CodeInvalidConfig, "max_retries must be at least 1")
	}
	w := c.Routing
	if w.QualityWeight < 0 || w.SpeedWeight < 0 || w.CostWeight < 0 {
		return core.ErrValidation(core.CodeInvalidConfig, "scoring weights cannot be negative")
	}
	if w.QualityWeight+w.SpeedWeight+w.CostWeight == 0 {
		return core.ErrValidation(core.CodeInvalidConfig, "scoring weights cannot all be zero")
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if seen[m.Name] {
			return core.ErrValidation(core.CodeDuplicateModel, "duplicate model in catalog: "+m.Name)
		}
		seen[m.Name] = true
		if err := m.Descriptor().Validate(); err != nil {
			return err
		}
	}
	return nil
}
