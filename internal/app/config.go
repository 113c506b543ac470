package app

import (
	"errors"
	"time"
)

// Default configuration values applied by NewConfig.
const (
	DefaultCacheDir      = ".parablock/cache"
	DefaultAttempts      = 3
	DefaultOracleBaseURL = "https://api.openai.com/v1"
	DefaultOracleModel   = "gpt-4.1"
	DefaultOracleTimeout = 60 * time.Second
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Path     string // declaration file or declarations tree
	CacheDir string // cache partition directory

	Attempts int    // generate/verify attempt budget per function
	Watch    bool   // keep running and reconcile on declaration changes
	Inspect  string // full name to inspect instead of processing

	OracleBaseURL string
	OracleModel   string
	OracleAPIKey  string
	OracleTimeout time.Duration

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Path == "" {
		return nil, errors.New("Path is a required configuration field and cannot be empty")
	}
	if cfg.Attempts < 0 {
		return nil, errors.New("Attempts cannot be negative")
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}
	if cfg.OracleBaseURL == "" {
		cfg.OracleBaseURL = DefaultOracleBaseURL
	}
	if cfg.OracleModel == "" {
		cfg.OracleModel = DefaultOracleModel
	}
	if cfg.OracleTimeout == 0 {
		cfg.OracleTimeout = DefaultOracleTimeout
	}

	return &cfg, nil
}
