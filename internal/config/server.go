package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rotaforge/scheduler/internal/env"
)

// ErrAPIKeyRequired is returned when the trigger API key is not configured.
var ErrAPIKeyRequired = errors.New("SCHEDULER_API_KEY is required")

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Database        DatabaseConfig
	Engine          EngineConfig
	Archive         ArchiveConfig
	Observability   ObservabilityConfig
	HTTP            HTTPConfig
	ShutdownTimeout time.Duration `env:"SCHEDULER_SHUTDOWN_TIMEOUT"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `env:"SCHEDULER_HTTP_HOST"`
	Port string `env:"SCHEDULER_HTTP_PORT"`

	// APIKey authorizes POST /scheduler/run. Status endpoints are open.
	APIKey string `env:"SCHEDULER_API_KEY"`

	// ReadTimeout and ReadHeaderTimeout bound request intake. WriteTimeout
	// stays zero: a triggered run holds the response open until the engine
	// finishes.
	ReadTimeout       time.Duration `env:"SCHEDULER_HTTP_READ_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"SCHEDULER_HTTP_READ_HEADER_TIMEOUT"`
	IdleTimeout       time.Duration `env:"SCHEDULER_HTTP_IDLE_TIMEOUT"`
	MaxHeaderBytes    int           `env:"SCHEDULER_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `env:"SCHEDULER_HTTP_MAX_BODY_BYTES"`
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if c.APIKey == "" {
		return ErrAPIKeyRequired
	}
	if c.Port == "" {
		return fmt.Errorf("SCHEDULER_HTTP_PORT must not be empty")
	}
	return nil
}

// Addr returns the listen address.
func (c *HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// LoadServerConfig loads and validates server configuration from environment.
// Unset variables keep the production defaults.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Engine:        DefaultEngineConfig(),
		Observability: ObservabilityConfig{ServiceName: "shift-scheduler-server"},
		HTTP: HTTPConfig{
			Port:              "8080",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		ShutdownTimeout: 30 * time.Second,
	}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
