package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/deckhand-ai/deckhand/internal/agent"
	"github.com/deckhand-ai/deckhand/internal/config"
	"github.com/deckhand-ai/deckhand/internal/diagnostics"
	"github.com/deckhand-ai/deckhand/internal/events"
	"github.com/deckhand-ai/deckhand/internal/llm"
	"github.com/deckhand-ai/deckhand/internal/logging"
	"github.com/deckhand-ai/deckhand/internal/orchestrator"
	"github.com/deckhand-ai/deckhand/internal/router"
)

// runtime bundles everything the commands need after startup wiring.
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *events.Bus
	models   *router.Registry
	policies *router.PolicyTable
	pipeline *orchestrator.Orchestrator
	probe    *diagnostics.SystemProber
}

func (r *runtime) close() {
	r.bus.Close()
}

func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		AddSource: cfg.Log.AddSource,
	})
}

// buildRuntime wires the full stack: model catalog, routing, callers, agents,
// pipeline, and the event bus.
func buildRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	prober := diagnostics.NewSystemProber(logger)
	creds := llm.EnvCredentials{}

	registry := router.NewRegistry(creds, prober, logger)
	for _, desc := range cfg.Descriptors() {
		if err := registry.Register(desc); err != nil {
			return nil, fmt.Errorf("registering model %q: %w", desc.Name, err)
		}
	}

	policies := router.NewPolicyTable()
	if cfg.Routing.PoliciesFile != "" {
		if err := policies.LoadPolicyFile(cfg.Routing.PoliciesFile); err != nil {
			return nil, fmt.Errorf("loading policies from %s: %w", cfg.Routing.PoliciesFile, err)
		}
	}

	modelRouter := router.New(registry, policies, logger,
		router.WithScoreWeights(router.ScoreWeights{
			Quality: cfg.Routing.QualityWeight,
			Speed:   cfg.Routing.SpeedWeight,
			Cost:    cfg.Routing.CostWeight,
		}))

	bus := events.New(256)

	deps := agent.Deps{
		Router:  modelRouter,
		Callers: llm.NewFactory(creds, logger),
		Logger:  logger,
		Bus:     bus,
		Retry: agent.NewRetryPolicy(
			agent.WithMaxAttempts(cfg.Generation.MaxRetries),
			agent.WithBaseDelay(cfg.Generation.RetryBaseWait),
		),
		Timeout: cfg.Generation.CallTimeout,
	}

	pipeline, err := orchestrator.New(agent.NewDefaultRegistry(), deps)
	if err != nil {
		bus.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		models:   registry,
		policies: policies,
		pipeline: pipeline,
		probe:    prober,
	}, nil
}
