package staffmap

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/report"
	"github.com/agentstation/staffmap/pkg/validation"
)

// Recorder persists finished reports, for example to run history.
type Recorder interface {
	Save(ctx context.Context, r *report.Report) error
}

// config holds the engine configuration
type config struct {
	registry    *mapping.Registry
	rulesPath   string
	slotMinutes float64
	suggestions bool

	epsilon                float64
	violationPenalty       float64
	supplyPenalty          float64
	demandPenalty          float64
	estimatedDemandPenalty float64

	suiteOptions []validation.Option
	runContext   map[string]string
	recorder     Recorder
	logger       *zerolog.Logger
	clock        func() time.Time
}

func defaultConfig() *config {
	return &config{
		slotMinutes:            constants.DefaultSlotMinutes,
		suggestions:            true,
		epsilon:                constants.DefaultEpsilon,
		violationPenalty:       constants.DefaultViolationPenalty,
		supplyPenalty:          constants.DefaultSupplyMismatchPenalty,
		demandPenalty:          constants.DefaultDemandMismatchPenalty,
		estimatedDemandPenalty: constants.DefaultEstimatedDemandPenalty,
		runContext:             map[string]string{},
		clock:                  time.Now,
	}
}

// Option is a function that configures an Engine
type Option func(*config) error

func (c *config) apply(opts ...Option) (*config, error) {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithRegistry sets the mapping rules
func WithRegistry(registry *mapping.Registry) Option {
	return func(c *config) error {
		if registry == nil {
			return &errors.ValidationError{Field: "registry", Message: "cannot be nil"}
		}
		c.registry = registry
		return nil
	}
}

// WithRules builds the registry from rules, failing on the first malformed one
func WithRules(rules ...mapping.Rule) Option {
	return func(c *config) error {
		registry, err := mapping.NewRegistry(rules...)
		if err != nil {
			return err
		}
		c.registry = registry
		return nil
	}
}

// WithRulesFile loads the registry from a YAML, JSON or TOML file when the engine is built
func WithRulesFile(path string) Option {
	return func(c *config) error {
		if path == "" {
			return &errors.ValidationError{Field: "rules", Message: "path cannot be empty"}
		}
		c.rulesPath = path
		return nil
	}
}

// WithSlotMinutes sets the slot duration for ledger rows that do not carry one
func WithSlotMinutes(minutes float64) Option {
	return func(c *config) error {
		c.slotMinutes = minutes
		return nil
	}
}

// WithSuggestions toggles label suggestions for unknown supply labels
func WithSuggestions(enabled bool) Option {
	return func(c *config) error {
		c.suggestions = enabled
		return nil
	}
}

// WithEpsilon sets the tolerance, in hours, for totals that should match
func WithEpsilon(epsilon float64) Option {
	return func(c *config) error {
		c.epsilon = epsilon
		return nil
	}
}

// WithViolationPenalty sets the level quality penalty per violation
func WithViolationPenalty(penalty float64) Option {
	return func(c *config) error {
		c.violationPenalty = penalty
		return nil
	}
}

// WithMismatchPenalties sets the cross-level penalties for supply, category
// demand and estimated sub-partition demand mismatches
func WithMismatchPenalties(supply, demand, estimatedDemand float64) Option {
	return func(c *config) error {
		c.supplyPenalty = supply
		c.demandPenalty = demand
		c.estimatedDemandPenalty = estimatedDemand
		return nil
	}
}

// WithValidation passes options to the validation suite
func WithValidation(opts ...validation.Option) Option {
	return func(c *config) error {
		c.suiteOptions = append(c.suiteOptions, opts...)
		return nil
	}
}

// WithPerformanceBudget sets the run duration under which performance scores 1
func WithPerformanceBudget(budget time.Duration) Option {
	return WithValidation(validation.WithPerformanceBudget(budget))
}

// WithRunContext adds key/value conditions CONTEXTUAL rules are matched
// against. They override ledger metadata with the same key.
func WithRunContext(runContext map[string]string) Option {
	return func(c *config) error {
		maps.Copy(c.runContext, runContext)
		return nil
	}
}

// WithRecorder saves every finished report
func WithRecorder(recorder Recorder) Option {
	return func(c *config) error {
		c.recorder = recorder
		return nil
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithClock sets the time source used for run timing and timestamps
func WithClock(clock func() time.Time) Option {
	return func(c *config) error {
		if clock == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		c.clock = clock
		return nil
	}
}
