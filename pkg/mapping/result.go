package mapping

import (
	"math"
	"sort"
)

// Pair is the hours one supply label contributed to one demand label.
// The two sides differ only under SEMANTIC rules, where supply hours are
// credited to demand at a partial-equivalence weight.
type Pair struct {
	SupplyHours float64 `json:"supply_hours" yaml:"supply_hours"`
	DemandHours float64 `json:"demand_hours" yaml:"demand_hours"`
}

// Allocation records one movement of hours by one rule.
type Allocation struct {
	RuleID      string   `json:"rule_id" yaml:"rule_id"`
	Strategy    Strategy `json:"strategy" yaml:"strategy"`
	Supply      string   `json:"supply" yaml:"supply"`
	Demand      string   `json:"demand" yaml:"demand"`
	Weight      float64  `json:"weight" yaml:"weight"`
	SupplyHours float64  `json:"supply_hours" yaml:"supply_hours"`
	DemandHours float64  `json:"demand_hours" yaml:"demand_hours"`
	Confidence  float64  `json:"confidence" yaml:"confidence"`
}

// SideChannel holds hours removed from reconciliation by SPECIAL rules.
type SideChannel struct {
	Supply map[string]float64 `json:"supply" yaml:"supply"`
	Demand map[string]float64 `json:"demand" yaml:"demand"`
}

// SupplyTotal returns the side-channel supply hours.
func (s SideChannel) SupplyTotal() float64 { return sum(s.Supply) }

// DemandTotal returns the side-channel demand hours.
func (s SideChannel) DemandTotal() float64 { return sum(s.Demand) }

// SkippedRule is a rule that moved no hours, with the reason.
type SkippedRule struct {
	RuleID string `json:"rule_id" yaml:"rule_id"`
	Reason string `json:"reason" yaml:"reason"`
}

// Result is the immutable outcome of resolving one pair of ledgers.
type Result struct {
	Pairs       map[string]map[string]Pair `json:"pairs" yaml:"pairs"`
	Allocations []Allocation               `json:"allocations" yaml:"allocations"`

	UnmappedSupply map[string]float64 `json:"unmapped_supply" yaml:"unmapped_supply"`
	UnmappedDemand map[string]float64 `json:"unmapped_demand" yaml:"unmapped_demand"`
	UnknownSupply  []string           `json:"unknown_supply,omitempty" yaml:"unknown_supply,omitempty"`
	UnknownDemand  []string           `json:"unknown_demand,omitempty" yaml:"unknown_demand,omitempty"`
	SideChannel    SideChannel        `json:"side_channel" yaml:"side_channel"`

	TotalSupplyInput  float64 `json:"total_supply_input" yaml:"total_supply_input"`
	TotalDemandInput  float64 `json:"total_demand_input" yaml:"total_demand_input"`
	TotalMappedSupply float64 `json:"total_mapped_supply" yaml:"total_mapped_supply"`
	TotalMappedDemand float64 `json:"total_mapped_demand" yaml:"total_mapped_demand"`

	MappingAccuracy float64 `json:"mapping_accuracy" yaml:"mapping_accuracy"`
	IntegrityScore  float64 `json:"integrity_score" yaml:"integrity_score"`
	Confidence      float64 `json:"confidence" yaml:"confidence"`

	Applied     []string                `json:"applied" yaml:"applied"`
	Skipped     []SkippedRule           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Suggestions map[string][]Suggestion `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Warnings    []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// MappingAccuracy is the share of reconcilable hours that were mapped, in [0,1].
func MappingAccuracy(mappedSupply, mappedDemand, supplyInput, demandInput float64) float64 {
	denom := supplyInput + demandInput
	if denom <= 0 || mappedSupply+mappedDemand <= 0 {
		return 0
	}
	return clamp01((mappedSupply + mappedDemand) / denom)
}

// IntegrityScore is 1 - |mS - mD| / max(mS, mD), in [0,1]. It is 0 when
// nothing was mapped.
func IntegrityScore(mappedSupply, mappedDemand float64) float64 {
	hi := math.Max(mappedSupply, mappedDemand)
	if hi <= 0 {
		return 0
	}
	return clamp01(1 - math.Abs(mappedSupply-mappedDemand)/hi)
}

// ByDemand folds pairs per demand label.
func (r *Result) ByDemand() map[string]Pair {
	out := make(map[string]Pair)
	for _, demand := range r.Pairs {
		for label, p := range demand {
			acc := out[label]
			acc.SupplyHours += p.SupplyHours
			acc.DemandHours += p.DemandHours
			out[label] = acc
		}
	}
	return out
}

// ContributorsOf returns the supply labels mapped into a demand label, sorted.
func (r *Result) ContributorsOf(demand string) []string {
	var labels []string
	for supply, pairs := range r.Pairs {
		if _, ok := pairs[demand]; ok {
			labels = append(labels, supply)
		}
	}
	sort.Strings(labels)
	return labels
}

// TotalUnmappedSupply returns the supply hours left after all rules.
func (r *Result) TotalUnmappedSupply() float64 { return sum(r.UnmappedSupply) }

// TotalUnmappedDemand returns the demand hours left after all rules.
func (r *Result) TotalUnmappedDemand() float64 { return sum(r.UnmappedDemand) }

// ReconcilableSupply is supply input minus the side channel.
func (r *Result) ReconcilableSupply() float64 {
	return r.TotalSupplyInput - r.SideChannel.SupplyTotal()
}

// ReconcilableDemand is demand input minus the side channel.
func (r *Result) ReconcilableDemand() float64 {
	return r.TotalDemandInput - r.SideChannel.DemandTotal()
}

// ConservationError returns, per side, how far mapped + unmapped + side
// channel is from the raw input. Both are zero up to float rounding.
func (r *Result) ConservationError() (supply, demand float64) {
	supply = r.TotalMappedSupply + r.TotalUnmappedSupply() + r.SideChannel.SupplyTotal() - r.TotalSupplyInput
	demand = r.TotalMappedDemand + r.TotalUnmappedDemand() + r.SideChannel.DemandTotal() - r.TotalDemandInput
	return math.Abs(supply), math.Abs(demand)
}

// sum adds map values in key order so totals are reproducible.
func sum(m map[string]float64) float64 {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var total float64
	for _, k := range keys {
		total += m[k]
	}
	return total
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
