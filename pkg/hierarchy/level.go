// Package hierarchy aggregates reconciled hours at three nested levels,
// ORGANIZATION, CATEGORY and SUB_PARTITION, and checks that the levels agree.
//
// Each level checks its own arithmetic. A failed check marks the level,
// records a violation and lowers its quality score; it never stops the
// pipeline.
package hierarchy

import (
	"fmt"
	"math"
	"sort"
)

// Level names an aggregation granularity.
type Level string

const (
	// Organization is the whole-organization baseline over raw ledgers.
	Organization Level = "ORGANIZATION"
	// Category is built strictly from mapped pairs, per demand label.
	Category Level = "CATEGORY"
	// SubPartition splits the organization by partition; its demand is estimated.
	SubPartition Level = "SUB_PARTITION"
)

// String returns the string representation of a level.
func (l Level) String() string {
	return string(l)
}

// Breakdown is one entry of a level.
type Breakdown struct {
	Supply   float64 `json:"supply" yaml:"supply"`
	Demand   float64 `json:"demand" yaml:"demand"`
	Shortage float64 `json:"shortage" yaml:"shortage"`
	Excess   float64 `json:"excess" yaml:"excess"`

	// ResidueSupply and ResidueDemand are unmapped hours left on the labels
	// behind a CATEGORY entry.
	ResidueSupply float64 `json:"residue_supply,omitempty" yaml:"residue_supply,omitempty"`
	ResidueDemand float64 `json:"residue_demand,omitempty" yaml:"residue_demand,omitempty"`

	Contributors []string `json:"contributors,omitempty" yaml:"contributors,omitempty"`

	// SideChannel entries are reported but excluded from level totals.
	SideChannel bool `json:"side_channel,omitempty" yaml:"side_channel,omitempty"`
	// Estimated entries carry modelled, not measured, demand.
	Estimated bool `json:"estimated,omitempty" yaml:"estimated,omitempty"`
}

func newBreakdown(supply, demand float64) Breakdown {
	return Breakdown{
		Supply:   supply,
		Demand:   demand,
		Shortage: math.Max(0, demand-supply),
		Excess:   math.Max(0, supply-demand),
	}
}

// LevelResult is the immutable outcome of one level.
type LevelResult struct {
	Level           Level                `json:"level" yaml:"level"`
	TotalSupply     float64              `json:"total_supply" yaml:"total_supply"`
	TotalDemand     float64              `json:"total_demand" yaml:"total_demand"`
	TotalShortage   float64              `json:"total_shortage" yaml:"total_shortage"`
	TotalExcess     float64              `json:"total_excess" yaml:"total_excess"`
	Breakdown       map[string]Breakdown `json:"breakdown" yaml:"breakdown"`
	Violations      []string             `json:"violations" yaml:"violations"`
	QualityScore    float64              `json:"quality_score" yaml:"quality_score"`
	IntegrityFailed bool                 `json:"integrity_failed" yaml:"integrity_failed"`
	Estimated       bool                 `json:"estimated" yaml:"estimated"`
}

func newLevel(level Level, supply, demand float64) *LevelResult {
	return &LevelResult{
		Level:         level,
		TotalSupply:   supply,
		TotalDemand:   demand,
		TotalShortage: math.Max(0, demand-supply),
		TotalExcess:   math.Max(0, supply-demand),
		Breakdown:     make(map[string]Breakdown),
		Violations:    []string{},
	}
}

// Keys returns the breakdown keys in sorted order.
func (l *LevelResult) Keys() []string {
	keys := make([]string, 0, len(l.Breakdown))
	for k := range l.Breakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BreakdownTotals sums the breakdown entries that count toward the level totals.
func (l *LevelResult) BreakdownTotals() (supply, demand float64) {
	for _, k := range l.Keys() {
		b := l.Breakdown[k]
		if b.SideChannel {
			continue
		}
		supply += b.Supply
		demand += b.Demand
	}
	return supply, demand
}

// checkIntegrity compares the level's stated totals against its breakdown.
func (l *LevelResult) checkIntegrity(epsilon float64) {
	supply, demand := l.BreakdownTotals()
	l.checkTotal("supply", l.TotalSupply, supply, epsilon)
	l.checkTotal("demand", l.TotalDemand, demand, epsilon)
}

func (l *LevelResult) checkTotal(side string, stated, sum, epsilon float64) {
	if diff := math.Abs(stated - sum); diff > epsilon {
		l.IntegrityFailed = true
		l.Violations = append(l.Violations, fmt.Sprintf(
			"%s %s total %.2fh differs from breakdown sum %.2fh by %.2fh", l.Level, side, stated, sum, diff))
	}
}

func (l *LevelResult) violate(format string, args ...any) {
	l.Violations = append(l.Violations, fmt.Sprintf(format, args...))
}

// score sets QualityScore to base x (1 - penalty per violation), in [0,1].
func (l *LevelResult) score(base, penaltyPerViolation float64) {
	penalty := math.Min(1, float64(len(l.Violations))*penaltyPerViolation)
	l.QualityScore = clamp01(base * (1 - penalty))
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
