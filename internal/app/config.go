package app

import (
	"errors"

	"github.com/vk/etude/internal/optimizer"
)

// Config holds everything an App instance needs to run one model.
type Config struct {
	ModelPath string // hcl model description

	LogFormat   string
	LogLevel    string
	WorkerCount int
	PoolSize    int
	InputLength int
	OptFlags    optimizer.Flags
}

// NewConfig validates a configuration and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("ModelPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 0 {
		return nil, errors.New("WorkerCount cannot be negative")
	}
	if cfg.InputLength <= 0 {
		cfg.InputLength = 16
	}
	return &cfg, nil
}
