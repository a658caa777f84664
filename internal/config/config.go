package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	SSH     SSHConfig
	Debug   DebugConfig
	Logging LogConfig
	Eval    EvalConfig
}

// SSHConfig holds the terminal SSH server configuration.
type SSHConfig struct {
	Addr        string        `envconfig:"SSH_ADDR" default:":2222"`
	HostKeyPath string        `envconfig:"SSH_HOST_KEY" default:"termserve_host_key"`
	ReadPoll    time.Duration `envconfig:"SSH_READ_POLL" default:"50ms"`
}

// DebugConfig holds the debug/metrics HTTP server configuration.
type DebugConfig struct {
	Addr    string `envconfig:"DEBUG_ADDR" default:"localhost:8022"`
	Enabled bool   `envconfig:"DEBUG_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// EvalConfig holds expression evaluator limits.
type EvalConfig struct {
	Timeout time.Duration `envconfig:"EVAL_TIMEOUT" default:"5s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		SSH: SSHConfig{
			Addr:        ":2222",
			HostKeyPath: "termserve_host_key",
			ReadPoll:    50 * time.Millisecond,
		},
		Debug: DebugConfig{
			Addr:    "localhost:8022",
			Enabled: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Eval: EvalConfig{
			Timeout: 5 * time.Second,
		},
	}
}
