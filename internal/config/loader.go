package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads configuration from all sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a loader with its own viper instance.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "DECKHAND",
	}
}

// NewLoaderWithViper creates a loader on an existing viper instance so CLI
// flag bindings participate in precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "DECKHAND",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// ConfigFileUsed returns the file viper actually read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load reads configuration. Precedence, highest first: CLI flags bound via
// BindPFlag, DECKHAND_* environment variables, the config file, defaults.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".deckhand")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "deckhand"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
	l.v.SetDefault("log.add_source", false)

	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8419)
	l.v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	l.v.SetDefault("server.read_timeout", "30s")

	l.v.SetDefault("storage.dir", defaultStorageDir())
	l.v.SetDefault("storage.history_db", filepath.Join(defaultStorageDir(), "history.db"))

	l.v.SetDefault("generation.default_slides", 10)
	l.v.SetDefault("generation.default_policy", "balanced")
	l.v.SetDefault("generation.local_only", false)
	l.v.SetDefault("generation.call_timeout", "45s")
	l.v.SetDefault("generation.max_retries", 3)
	l.v.SetDefault("generation.retry_base_wait", "500ms")

	l.v.SetDefault("routing.policies_file", "")
	l.v.SetDefault("routing.quality_weight", 0.4)
	l.v.SetDefault("routing.speed_weight", 0.3)
	l.v.SetDefault("routing.cost_weight", 0.3)

	// Default catalog: a deterministic simulated model so a fresh install
	// works offline, plus a local endpoint picked up when one is running.
	l.v.SetDefault("models", []map[string]any{
		{
			"name":         "sim-default",
			"kind":         "simulated",
			"capabilities": []string{"general"},
			"speed":        "fast",
			"quality":      "medium",
		},
		{
			"name":           "local-llama",
			"kind":           "local",
			"endpoint":       "http://127.0.0.1:11434/v1",
			"capabilities":   []string{"general"},
			"speed":          "medium",
			"quality":        "medium",
			"cost_per_token": 0.0,
			"min_memory_mb":  8192,
		},
	})
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deckhand"
	}
	return filepath.Join(home, ".local", "share", "deckhand")
}
