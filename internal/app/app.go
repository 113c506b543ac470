package app

import (
	"io"
	"log/slog"

	"github.com/vk/parablock/internal/cache"
	"github.com/vk/parablock/internal/dispatcher"
	"github.com/vk/parablock/internal/executor"
	"github.com/vk/parablock/internal/harness"
	"github.com/vk/parablock/internal/loader"
	"github.com/vk/parablock/internal/oracle"
	"github.com/vk/parablock/internal/orchestrator"
	"github.com/vk/parablock/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle. There is no package-level state: registry, cache, and the rest
// of the pipeline are constructed here once per instance and passed down
// explicitly.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry     *registry.Registry
	cache        *cache.Cache
	oracle       oracle.Oracle
	loader       *loader.Loader
	orchestrator *orchestrator.Orchestrator
	dispatcher   *dispatcher.Dispatcher
}

// NewApp is the constructor for the main application. A nil synth selects the
// HTTP oracle built from the config; tests inject stubs instead.
func NewApp(outW io.Writer, cfg *Config, synth oracle.Oracle) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	c := cache.New(cfg.CacheDir, reg)
	exec := executor.New()

	if synth == nil {
		synth = oracle.NewHTTP(oracle.HTTPConfig{
			BaseURL: cfg.OracleBaseURL,
			APIKey:  cfg.OracleAPIKey,
			Model:   cfg.OracleModel,
			Timeout: cfg.OracleTimeout,
		})
	}

	return &App{
		outW:         outW,
		logger:       logger,
		config:       cfg,
		registry:     reg,
		cache:        c,
		oracle:       synth,
		loader:       loader.New(reg),
		orchestrator: orchestrator.New(reg, c, synth, harness.New(exec), cfg.Attempts),
		dispatcher:   dispatcher.New(reg, c, exec),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Dispatcher returns the application's runtime call surface.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}
