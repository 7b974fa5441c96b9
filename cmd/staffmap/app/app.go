// Package app provides the application context and dependency management
// for the staffmap CLI: configuration, logging, the reconciliation engine
// and run history.
package app

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap"
	"github.com/agentstation/staffmap/cmd/application"
	"github.com/agentstation/staffmap/internal/store"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/validation"
)

// App represents the staffmap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Lazily initialized, guarded by mu
	mu      sync.RWMutex
	engine  staffmap.Engine
	history *store.Store
}

var _ application.Application = (*App)(nil)

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// RulesPath returns the configured rule file.
func (a *App) RulesPath() string {
	return a.config.Rules
}

// Engine returns the reconciliation engine. Without options the engine is
// built once from the configuration and reused; with options a new engine
// is built with them applied after the configured ones.
func (a *App) Engine(opts ...staffmap.Option) (staffmap.Engine, error) {
	if len(opts) > 0 {
		engine, err := staffmap.New(append(a.engineOptions(), opts...)...)
		if err != nil {
			return nil, errors.WrapResource("create", "engine", "with custom options", err)
		}
		return engine, nil
	}

	a.mu.RLock()
	if a.engine != nil {
		engine := a.engine
		a.mu.RUnlock()
		return engine, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.engine != nil {
		return a.engine, nil
	}

	engine, err := staffmap.New(a.engineOptions()...)
	if err != nil {
		return nil, errors.WrapResource("create", "engine", "", err)
	}
	a.engine = engine
	return engine, nil
}

// History opens the run history database, or returns nil when none is
// configured.
func (a *App) History() (application.History, error) {
	if a.config.HistoryDB == "" {
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.history != nil {
		return a.history, nil
	}
	history, err := store.Open(a.config.HistoryDB)
	if err != nil {
		return nil, err
	}
	a.history = history
	return history, nil
}

// Shutdown releases the resources the app opened.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close run history during shutdown")
			return err
		}
		a.history = nil
	}
	return nil
}

// engineOptions constructs engine options from the app configuration.
func (a *App) engineOptions() []staffmap.Option {
	c := a.config
	opts := []staffmap.Option{
		staffmap.WithLogger(a.logger),
		staffmap.WithSlotMinutes(c.SlotMinutes),
		staffmap.WithSuggestions(c.Suggestions),
		staffmap.WithEpsilon(c.Epsilon),
		staffmap.WithViolationPenalty(c.ViolationPenalty),
		staffmap.WithMismatchPenalties(c.SupplyMismatchPenalty, c.DemandMismatchPenalty, c.EstimatedDemandPenalty),
	}

	if c.Rules != "" {
		opts = append(opts, staffmap.WithRulesFile(c.Rules))
	}
	if c.PerformanceBudget > 0 {
		opts = append(opts, staffmap.WithPerformanceBudget(c.PerformanceBudget))
	}
	if len(c.Context) > 0 {
		opts = append(opts, staffmap.WithRunContext(c.Context))
	}

	names := make([]string, 0, len(c.Checks))
	for name := range c.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var checks []validation.Option
	for _, name := range names {
		check := c.Checks[name]
		if check.Threshold != nil {
			checks = append(checks, validation.WithThreshold(name, *check.Threshold))
		}
		if check.Weight != nil {
			checks = append(checks, validation.WithWeight(name, *check.Weight))
		}
	}
	if len(checks) > 0 {
		opts = append(opts, staffmap.WithValidation(checks...))
	}

	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithEngine sets a custom engine instance (useful for testing).
func WithEngine(engine staffmap.Engine) Option {
	return func(a *App) error {
		a.engine = engine
		return nil
	}
}
