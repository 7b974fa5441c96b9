package hierarchy

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
)

type options struct {
	epsilon                float64
	violationPenalty       float64
	supplyPenalty          float64
	demandPenalty          float64
	estimatedDemandPenalty float64
	logger                 *zerolog.Logger
}

func defaultOptions() *options {
	return &options{
		epsilon:                constants.DefaultEpsilon,
		violationPenalty:       constants.DefaultViolationPenalty,
		supplyPenalty:          constants.DefaultSupplyMismatchPenalty,
		demandPenalty:          constants.DefaultDemandMismatchPenalty,
		estimatedDemandPenalty: constants.DefaultEstimatedDemandPenalty,
	}
}

// Option configures an Aggregator or a CrossLevelValidator.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithEpsilon sets the tolerance, in hours, for totals that should match.
func WithEpsilon(epsilon float64) Option {
	return func(o *options) error {
		if epsilon < 0 || math.IsNaN(epsilon) {
			return errors.NewConfigError("hierarchy", "epsilon must be non-negative", nil)
		}
		o.epsilon = epsilon
		return nil
	}
}

// WithViolationPenalty sets the quality penalty per level violation.
func WithViolationPenalty(penalty float64) Option {
	return penaltyOption("violation_penalty", penalty, func(o *options) { o.violationPenalty = penalty })
}

// WithSupplyMismatchPenalty sets the cross-level penalty for a supply mismatch.
func WithSupplyMismatchPenalty(penalty float64) Option {
	return penaltyOption("supply_mismatch_penalty", penalty, func(o *options) { o.supplyPenalty = penalty })
}

// WithDemandMismatchPenalty sets the cross-level penalty for a category demand mismatch.
func WithDemandMismatchPenalty(penalty float64) Option {
	return penaltyOption("demand_mismatch_penalty", penalty, func(o *options) { o.demandPenalty = penalty })
}

// WithEstimatedDemandPenalty sets the cross-level penalty for an estimated
// sub-partition demand mismatch.
func WithEstimatedDemandPenalty(penalty float64) Option {
	return penaltyOption("estimated_demand_penalty", penalty, func(o *options) { o.estimatedDemandPenalty = penalty })
}

// WithLogger sets the logger. The context logger is used otherwise.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

func penaltyOption(name string, penalty float64, set func(*options)) Option {
	return func(o *options) error {
		if penalty < 0 || penalty > 1 || math.IsNaN(penalty) {
			return errors.NewConfigError("hierarchy", name+" must be in [0,1]", nil)
		}
		set(o)
		return nil
	}
}
