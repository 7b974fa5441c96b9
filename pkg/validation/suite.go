// Package validation scores a finished reconciliation run with named
// quality checks and combines them into a weighted grade.
package validation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/logging"
)

// Grade is the letter grade of a run.
type Grade string

// Grades from best to worst.
const (
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
)

// ProductionReady reports whether the grade is good enough to act on.
func (g Grade) ProductionReady() bool {
	return g == GradeA || g == GradeBPlus
}

// GradeFor maps a weighted score and pass rate onto a grade.
func GradeFor(weightedScore, passRate float64) Grade {
	switch {
	case weightedScore >= 0.9 && passRate >= 0.8:
		return GradeA
	case weightedScore >= 0.8 && passRate >= 0.7:
		return GradeBPlus
	case weightedScore >= 0.7 && passRate >= 0.6:
		return GradeB
	default:
		return GradeC
	}
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Score     float64 `json:"score" yaml:"score"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Weight    float64 `json:"weight" yaml:"weight"`
	Passed    bool    `json:"passed" yaml:"passed"`
	// Gap is threshold - score when the check failed.
	Gap float64 `json:"gap,omitempty" yaml:"gap,omitempty"`
}

// Report is the immutable outcome of a suite run.
type Report struct {
	Checks          map[string]CheckResult `json:"checks" yaml:"checks"`
	Order           []string               `json:"order" yaml:"order"`
	WeightedScore   float64                `json:"weighted_score" yaml:"weighted_score"`
	PassRate        float64                `json:"pass_rate" yaml:"pass_rate"`
	Grade           Grade                  `json:"grade" yaml:"grade"`
	ProductionReady bool                   `json:"production_ready" yaml:"production_ready"`
	Recommendations []string               `json:"recommendations" yaml:"recommendations"`
}

// Failed returns the names of failing checks in suite order.
func (r *Report) Failed() []string {
	var out []string
	for _, name := range r.Order {
		if !r.Checks[name].Passed {
			out = append(out, name)
		}
	}
	return out
}

type options struct {
	defs   []Definition
	logger *zerolog.Logger
}

// Option configures a Suite.
type Option func(*options) error

// WithChecks replaces the whole check set.
func WithChecks(defs ...Definition) Option {
	return func(o *options) error {
		o.defs = append([]Definition(nil), defs...)
		return nil
	}
}

// WithCheck adds a check, replacing any check with the same name.
func WithCheck(def Definition) Option {
	return func(o *options) error {
		for i := range o.defs {
			if o.defs[i].Name == def.Name {
				o.defs[i] = def
				return nil
			}
		}
		o.defs = append(o.defs, def)
		return nil
	}
}

// WithThreshold overrides the threshold of a named check.
func WithThreshold(name string, threshold float64) Option {
	return func(o *options) error {
		def, err := o.find(name)
		if err != nil {
			return err
		}
		def.Threshold = threshold
		return nil
	}
}

// WithWeight overrides the weight of a named check.
func WithWeight(name string, weight float64) Option {
	return func(o *options) error {
		def, err := o.find(name)
		if err != nil {
			return err
		}
		def.Weight = weight
		return nil
	}
}

// WithPerformanceBudget sets the duration under which performance scores 1.
func WithPerformanceBudget(budget time.Duration) Option {
	return func(o *options) error {
		if budget <= 0 {
			return errors.NewConfigError("validation", "performance budget must be positive", nil)
		}
		def, err := o.find(PerformanceEfficiency)
		if err != nil {
			return err
		}
		def.Check = PerformanceCheck(budget)
		return nil
	}
}

// WithLogger sets the logger. The context logger is used otherwise.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

func (o *options) find(name string) (*Definition, error) {
	for i := range o.defs {
		if o.defs[i].Name == name {
			return &o.defs[i], nil
		}
	}
	return nil, errors.NewConfigError("validation", fmt.Sprintf("unknown check %q", name), errors.ErrNotFound)
}

// Suite runs a fixed set of checks.
type Suite struct {
	defs   []Definition
	logger *zerolog.Logger
}

// NewSuite builds a suite from the default checks and opts. Thresholds must
// be in [0,1] and weights must sum to 1.
func NewSuite(opts ...Option) (*Suite, error) {
	o := &options{defs: DefaultDefinitions(constants.DefaultPerformanceBudget)}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if len(o.defs) == 0 {
		return nil, errors.NewConfigError("validation", "suite has no checks", nil)
	}
	var total float64
	seen := make(map[string]bool, len(o.defs))
	for _, def := range o.defs {
		switch {
		case def.Name == "":
			return nil, errors.NewConfigError("validation", "check has no name", nil)
		case seen[def.Name]:
			return nil, errors.NewConfigError("validation", fmt.Sprintf("duplicate check %q", def.Name), nil)
		case def.Check == nil:
			return nil, errors.NewConfigError("validation", fmt.Sprintf("check %q has no implementation", def.Name), nil)
		case def.Threshold < 0 || def.Threshold > 1:
			return nil, errors.NewConfigError("validation", fmt.Sprintf("check %q threshold %v outside [0,1]", def.Name, def.Threshold), nil)
		case def.Weight < 0:
			return nil, errors.NewConfigError("validation", fmt.Sprintf("check %q weight %v is negative", def.Name, def.Weight), nil)
		}
		seen[def.Name] = true
		total += def.Weight
	}
	if math.Abs(total-1) > constants.WeightSumEpsilon {
		return nil, errors.NewConfigError("validation", fmt.Sprintf("check weights sum to %v, must sum to 1", total), nil)
	}

	return &Suite{defs: o.defs, logger: o.logger}, nil
}

// Definitions returns the suite's checks in run order.
func (s *Suite) Definitions() []Definition {
	return append([]Definition(nil), s.defs...)
}

// Run scores in. It always returns a graded report.
func (s *Suite) Run(ctx context.Context, in *Input) *Report {
	if in == nil {
		in = &Input{}
	}
	report := &Report{
		Checks:          make(map[string]CheckResult, len(s.defs)),
		Order:           make([]string, 0, len(s.defs)),
		Recommendations: []string{},
	}

	var passed int
	for _, def := range s.defs {
		score := clamp01(def.Check.Score(in))
		res := CheckResult{
			Score:     score,
			Threshold: def.Threshold,
			Weight:    def.Weight,
			Passed:    score >= def.Threshold,
		}
		if res.Passed {
			passed++
		} else {
			res.Gap = def.Threshold - score
			report.Recommendations = append(report.Recommendations, recommendation(def, score, res.Gap))
		}
		report.Checks[def.Name] = res
		report.Order = append(report.Order, def.Name)
		report.WeightedScore += score * def.Weight
	}

	report.WeightedScore = clamp01(report.WeightedScore)
	report.PassRate = float64(passed) / float64(len(s.defs))
	report.Grade = GradeFor(report.WeightedScore, report.PassRate)
	report.ProductionReady = report.Grade.ProductionReady()

	if !in.SupplyPresent {
		report.Recommendations = append(report.Recommendations,
			"supply ledger is missing or empty: totals are degraded, provide a staffed-hours source")
	}
	if !in.DemandPresent {
		report.Recommendations = append(report.Recommendations,
			"demand ledger is missing or empty: totals are degraded, provide a coverage requirement source")
	}

	logger := s.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger.Debug().
		Float64("weighted_score", report.WeightedScore).
		Float64("pass_rate", report.PassRate).
		Str("grade", string(report.Grade)).
		Msg("Validation complete")
	return report
}

func recommendation(def Definition, score, gap float64) string {
	msg := fmt.Sprintf("%s scored %.2f, %.2f below its %.2f threshold", def.Name, score, gap, def.Threshold)
	if def.Advice != "" {
		msg += ": " + def.Advice
	}
	return msg
}
