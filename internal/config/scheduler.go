package config

import (
	"fmt"

	"github.com/rotaforge/scheduler/internal/env"
)

// SchedulerConfig holds all configuration for the scheduler batch binary.
type SchedulerConfig struct {
	Database      DatabaseConfig
	Engine        EngineConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
}

// LoadSchedulerConfig loads and validates scheduler configuration from
// environment. Unset variables keep the production defaults.
func LoadSchedulerConfig() (*SchedulerConfig, error) {
	cfg := &SchedulerConfig{
		Engine:        DefaultEngineConfig(),
		Observability: ObservabilityConfig{ServiceName: "shift-scheduler"},
	}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load scheduler config: %w", err)
	}

	return cfg, nil
}
