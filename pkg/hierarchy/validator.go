package hierarchy

import (
	"context"
	"fmt"
	"math"

	"github.com/agentstation/staffmap/pkg/logging"
	"github.com/agentstation/staffmap/pkg/mapping"
)

// Comparison is one cross-level total comparison.
type Comparison struct {
	Name       string  `json:"name" yaml:"name"`
	Expected   float64 `json:"expected" yaml:"expected"`
	Actual     float64 `json:"actual" yaml:"actual"`
	Difference float64 `json:"difference" yaml:"difference"`
	Penalty    float64 `json:"penalty" yaml:"penalty"`
	Passed     bool    `json:"passed" yaml:"passed"`
}

// CrossLevelResult is the outcome of comparing the levels.
type CrossLevelResult struct {
	OverallScore float64      `json:"overall_score" yaml:"overall_score"`
	Comparisons  []Comparison `json:"comparisons" yaml:"comparisons"`
	Violations   []string     `json:"violations" yaml:"violations"`
}

// CrossLevelValidator compares ORGANIZATION totals against CATEGORY plus the
// side channel and against SUB_PARTITION.
type CrossLevelValidator struct {
	opts *options
}

// NewCrossLevelValidator creates a CrossLevelValidator.
func NewCrossLevelValidator(opts ...Option) (*CrossLevelValidator, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &CrossLevelValidator{opts: o}, nil
}

// Validate scores level agreement. Every mismatch beyond epsilon subtracts its
// penalty from 1; the score floors at 0. Demand mismatches weigh less since
// category demand excludes residue and sub-partition demand is estimated.
func (v *CrossLevelValidator) Validate(ctx context.Context, levels *Levels, side mapping.SideChannel) *CrossLevelResult {
	out := &CrossLevelResult{OverallScore: 1, Comparisons: []Comparison{}, Violations: []string{}}
	if levels == nil || levels.Organization == nil {
		out.OverallScore = 0
		out.Violations = append(out.Violations, "organization level missing")
		return out
	}
	org := levels.Organization

	compare := func(name string, expected, actual, penalty float64) {
		diff := math.Abs(expected - actual)
		c := Comparison{
			Name:       name,
			Expected:   expected,
			Actual:     actual,
			Difference: diff,
			Passed:     diff <= v.opts.epsilon,
		}
		if !c.Passed {
			c.Penalty = penalty
			out.OverallScore -= penalty
			out.Violations = append(out.Violations, fmt.Sprintf(
				"%s: organization %.2fh vs %.2fh (difference %.2fh)", name, expected, actual, diff))
		}
		out.Comparisons = append(out.Comparisons, c)
	}

	if cat := levels.Category; cat != nil {
		compare("category supply", org.TotalSupply, cat.TotalSupply+side.SupplyTotal(), v.opts.supplyPenalty)
		compare("category demand", org.TotalDemand, cat.TotalDemand+side.DemandTotal(), v.opts.demandPenalty)
	}
	if sub := levels.SubPartition; sub != nil {
		compare("sub-partition supply", org.TotalSupply, sub.TotalSupply, v.opts.supplyPenalty)
		compare("sub-partition demand", org.TotalDemand, sub.TotalDemand, v.opts.estimatedDemandPenalty)
	}

	out.OverallScore = math.Max(0, out.OverallScore)

	logger := v.opts.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger.Debug().
		Float64("overall_score", out.OverallScore).
		Int("violations", len(out.Violations)).
		Msg("Validated cross-level consistency")
	return out
}
