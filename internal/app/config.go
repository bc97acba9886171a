package app

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults for an invocation.
const (
	DefaultTaskfile = "sitepipe.hcl"
	DefaultTask     = "default"
	DefaultWebhost  = "webhost-config.json"
	DefaultStateDir = ".sitepipe"
	DefaultEnvFile  = ".env"
)

// Config holds everything an App needs for one invocation.
type Config struct {
	TaskfilePath string
	Task         string
	WebhostPath  string
	EnvFile      string

	LogFormat string
	LogLevel  string
	Workers   int

	// All disables update-only mode for deploy tasks.
	All bool

	List bool
	Plan bool

	StateDir  string
	NoHistory bool
}

// NewConfig applies defaults and validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TaskfilePath == "" {
		cfg.TaskfilePath = DefaultTaskfile
	}
	if cfg.Task == "" {
		cfg.Task = DefaultTask
	}
	if cfg.WebhostPath == "" {
		cfg.WebhostPath = DefaultWebhost
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if _, ok := parseLevel(cfg.LogLevel); !ok {
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid workers: %d must not be negative", cfg.Workers)
	}
	if cfg.List && cfg.Plan {
		return nil, errors.New("--list and --plan cannot be combined")
	}
	return &cfg, nil
}
