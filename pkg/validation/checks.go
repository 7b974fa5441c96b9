package validation

import (
	"math"
	"time"

	"github.com/agentstation/staffmap/pkg/hierarchy"
	"github.com/agentstation/staffmap/pkg/mapping"
)

// Built-in check names.
const (
	DataIntegrity         = "data_integrity"
	CalculationAccuracy   = "calculation_accuracy"
	MappingCompleteness   = "mapping_completeness"
	HierarchyConsistency  = "hierarchy_consistency"
	PerformanceEfficiency = "performance_efficiency"
	BusinessValue         = "business_value"
)

// Input is the finished run a suite scores.
type Input struct {
	SupplyPresent bool
	DemandPresent bool
	Mapping       *mapping.Result
	Levels        *hierarchy.Levels
	CrossLevel    *hierarchy.CrossLevelResult
	Elapsed       time.Duration
}

// Check scores one quality aspect of a run in [0,1].
type Check interface {
	Score(in *Input) float64
}

// CheckFunc adapts a function to Check.
type CheckFunc func(in *Input) float64

// Score implements Check.
func (f CheckFunc) Score(in *Input) float64 {
	return f(in)
}

// Definition names a check with its pass threshold and composite weight.
type Definition struct {
	Name      string
	Check     Check
	Threshold float64
	Weight    float64
	// Advice is appended to the recommendation when the check fails.
	Advice string
}

// DefaultDefinitions returns the built-in checks. Weights sum to 1.
func DefaultDefinitions(budget time.Duration) []Definition {
	return []Definition{
		{
			Name: DataIntegrity, Check: CheckFunc(dataIntegrity), Threshold: 0.95, Weight: 0.25,
			Advice: "restore missing ledgers and resolve level integrity violations",
		},
		{
			Name: CalculationAccuracy, Check: CheckFunc(calculationAccuracy), Threshold: 0.90, Weight: 0.20,
			Advice: "review SEMANTIC weights and rules whose mapped supply and demand diverge",
		},
		{
			Name: MappingCompleteness, Check: CheckFunc(mappingCompleteness), Threshold: 0.80, Weight: 0.20,
			Advice: "add mapping rules for unknown or unmapped labels",
		},
		{
			Name: HierarchyConsistency, Check: CheckFunc(hierarchyConsistency), Threshold: 0.80, Weight: 0.15,
			Advice: "reduce unmapped residue and check partition totals against the organization",
		},
		{
			Name: PerformanceEfficiency, Check: PerformanceCheck(budget), Threshold: 0.70, Weight: 0.10,
			Advice: "profile ledger extraction and trim the rule set",
		},
		{
			Name: BusinessValue, Check: CheckFunc(businessValue), Threshold: 0.60, Weight: 0.10,
			Advice: "too little demand is covered by mapped supply",
		},
	}
}

// dataIntegrity is the mean of: supply present, demand present and each
// level passing its own integrity check.
func dataIntegrity(in *Input) float64 {
	flags := []bool{in.SupplyPresent, in.DemandPresent}
	if in.Levels != nil {
		flags = append(flags, in.Levels.IntegrityOK()...)
	} else {
		flags = append(flags, false, false, false)
	}
	var ok int
	for _, f := range flags {
		if f {
			ok++
		}
	}
	return float64(ok) / float64(len(flags))
}

// calculationAccuracy is the mapping integrity score times how well hours
// were conserved.
func calculationAccuracy(in *Input) float64 {
	if in.Mapping == nil {
		return 0
	}
	m := in.Mapping
	input := m.TotalSupplyInput + m.TotalDemandInput
	conservation := 1.0
	if input > 0 {
		s, d := m.ConservationError()
		conservation = clamp01(1 - (s+d)/input)
	}
	return clamp01(m.IntegrityScore * conservation)
}

func mappingCompleteness(in *Input) float64 {
	if in.Mapping == nil {
		return 0
	}
	return clamp01(in.Mapping.MappingAccuracy)
}

func hierarchyConsistency(in *Input) float64 {
	if in.CrossLevel == nil {
		return 0
	}
	return clamp01(in.CrossLevel.OverallScore)
}

// businessValue is the share of organization demand covered by mapped supply.
func businessValue(in *Input) float64 {
	if in.Levels == nil || in.Levels.Organization == nil || in.Levels.Category == nil {
		return 0
	}
	demand := in.Levels.Organization.TotalDemand
	if demand <= 0 {
		return 0
	}
	return clamp01(in.Levels.Category.TotalDemand / demand)
}

// PerformanceCheck scores 1 within budget and budget/elapsed beyond it.
func PerformanceCheck(budget time.Duration) Check {
	return CheckFunc(func(in *Input) float64 {
		if in.Elapsed <= budget {
			return 1
		}
		return clamp01(float64(budget) / float64(in.Elapsed))
	})
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
