package mapping

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap/internal/matcher"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
	"github.com/agentstation/staffmap/pkg/logging"
)

// Resolver applies a Registry to a pair of label to hours maps.
type Resolver struct {
	registry    *Registry
	logger      *zerolog.Logger
	suggestions bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger. The context logger is used otherwise.
func WithResolverLogger(logger *zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithSuggestions toggles label suggestions for unknown supply labels.
func WithSuggestions(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.suggestions = enabled
	}
}

// NewResolver creates a Resolver over registry.
func NewResolver(registry *Registry, opts ...ResolverOption) (*Resolver, error) {
	if registry == nil {
		return nil, errors.NewConfigError("resolver", "registry is required", nil)
	}
	r := &Resolver{registry: registry, suggestions: true}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Registry returns the rules this resolver applies.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve aligns supply and demand hours. Neither map is modified. runCtx
// holds the key/value conditions CONTEXTUAL rules are evaluated against.
// The only error is context cancellation.
func (r *Resolver) Resolve(ctx context.Context, supply, demand map[string]float64, runCtx map[string]string) (*Result, error) {
	if r.logger != nil {
		ctx = logging.WithLogger(ctx, r.logger)
	}
	logger := logging.FromContext(ctx)

	res := &Result{
		Pairs:          make(map[string]map[string]Pair),
		Allocations:    []Allocation{},
		UnmappedSupply: make(map[string]float64),
		UnmappedDemand: make(map[string]float64),
		SideChannel: SideChannel{
			Supply: make(map[string]float64),
			Demand: make(map[string]float64),
		},
		Applied: []string{},
	}

	remS := r.seed(res, ledger.Supply, supply)
	remD := r.seed(res, ledger.Demand, demand)
	res.TotalSupplyInput = sum(remS)
	res.TotalDemandInput = sum(remD)

	var weighted, weightedHours float64
	for _, rule := range r.registry.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		moved, reason := r.apply(rule, remS, remD, runCtx, res)
		ruleLogger := logging.FromContext(logging.WithRule(ctx, rule.ID))
		if moved <= 0 {
			res.Skipped = append(res.Skipped, SkippedRule{RuleID: rule.ID, Reason: reason})
			ruleLogger.Debug().Str("reason", reason).Msg("Mapping rule skipped")
			continue
		}
		res.Applied = append(res.Applied, rule.ID)
		ruleLogger.Debug().Float64("hours", moved).Msg("Mapping rule applied")
	}

	for _, a := range res.Allocations {
		hours := a.SupplyHours + a.DemandHours
		weighted += hours * a.Confidence
		weightedHours += hours
		res.TotalMappedSupply += a.SupplyHours
		res.TotalMappedDemand += a.DemandHours
	}
	if weightedHours > 0 {
		res.Confidence = clamp01(weighted / weightedHours)
	}

	for label, h := range remS {
		if h > 0 {
			res.UnmappedSupply[label] = h
		}
	}
	for label, h := range remD {
		if h > 0 {
			res.UnmappedDemand[label] = h
		}
	}

	vocab := r.registry.Vocabulary()
	res.UnknownSupply = unknownLabels(vocab, ledger.Supply, supply)
	res.UnknownDemand = unknownLabels(vocab, ledger.Demand, demand)

	res.MappingAccuracy = MappingAccuracy(res.TotalMappedSupply, res.TotalMappedDemand,
		res.ReconcilableSupply(), res.ReconcilableDemand())
	res.IntegrityScore = IntegrityScore(res.TotalMappedSupply, res.TotalMappedDemand)

	if r.suggestions && len(res.UnknownSupply) > 0 {
		res.Suggestions = Suggest(res.UnknownSupply, sortedLabels(demand))
	}

	logger.Debug().
		Int("applied", len(res.Applied)).
		Int("skipped", len(res.Skipped)).
		Float64("mapping_accuracy", res.MappingAccuracy).
		Float64("integrity_score", res.IntegrityScore).
		Msg("Resolved mapping")
	return res, nil
}

// seed copies the input, dropping entries that are not valid hour totals.
func (r *Resolver) seed(res *Result, provenance ledger.Provenance, in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for label, h := range in {
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s label %q: invalid hours %v ignored", provenance, label, h))
			continue
		}
		out[label] = h
	}
	sort.Strings(res.Warnings)
	return out
}

// binding is a present label matched by the pattern at index.
type binding struct {
	label string
	index int
}

// bind expands a rule's patterns against the present labels. A label bound by
// an earlier pattern of the same rule is not bound again.
func bind(set *matcher.Set, remaining map[string]float64) []binding {
	labels := sortedLabels(remaining)
	bound := make(map[string]struct{})
	var out []binding
	for i := 0; i < set.Len(); i++ {
		for _, label := range set.At(i).Expand(labels) {
			if _, done := bound[label]; done {
				continue
			}
			bound[label] = struct{}{}
			out = append(out, binding{label: label, index: i})
		}
	}
	return out
}

// apply runs one rule and returns the hours it moved, or why it moved none.
func (r *Resolver) apply(rule *compiledRule, remS, remD map[string]float64, runCtx map[string]string, res *Result) (float64, string) {
	switch rule.Strategy {
	case Special:
		return r.applySpecial(rule, remS, remD, res)
	case Contextual:
		if ok, why := conditionsHold(rule.When, runCtx); !ok {
			return 0, why
		}
	}

	supply := bind(rule.supply, remS)
	demand := bind(rule.demand, remD)
	if len(supply) == 0 || len(demand) == 0 {
		return 0, absentReason(rule, supply, demand)
	}

	var moved float64
	if rule.Strategy == Semantic {
		moved = r.applySemantic(rule, supply, demand, remS, remD, res)
	} else {
		moved = r.applyDistribution(rule, supply, demand, remS, remD, res)
	}
	if moved <= 0 {
		return 0, "no remaining hours on matched labels"
	}
	return moved, ""
}

// applyDistribution moves equal hours from supply to demand:
// min(supply_at_rule_start x w, supply remaining, demand remaining).
func (r *Resolver) applyDistribution(rule *compiledRule, supply, demand []binding, remS, remD map[string]float64, res *Result) float64 {
	start := make(map[string]float64, len(supply))
	for _, s := range supply {
		start[s.label] = remS[s.label]
	}

	var moved float64
	for _, s := range supply {
		for _, d := range demand {
			w := rule.Weight(s.index, d.index)
			if w <= 0 {
				continue
			}
			amt := math.Min(start[s.label]*w, math.Min(remS[s.label], remD[d.label]))
			if amt <= 0 {
				continue
			}
			remS[s.label] -= amt
			remD[d.label] -= amt
			record(res, rule, s.label, d.label, w, amt, amt)
			moved += amt
		}
	}
	return moved
}

// applySemantic consumes supply hours and credits them to demand at the
// equivalence weight, never crediting more demand than remains.
func (r *Resolver) applySemantic(rule *compiledRule, supply, demand []binding, remS, remD map[string]float64, res *Result) float64 {
	var moved float64
	for _, s := range supply {
		for _, d := range demand {
			w := rule.Weight(s.index, d.index)
			rs, rd := remS[s.label], remD[d.label]
			if w <= 0 || rs <= 0 || rd <= 0 {
				continue
			}

			var consumed, credited float64
			if rd/w <= rs {
				consumed, credited = rd/w, rd
			} else {
				consumed, credited = rs, math.Min(rs*w, rd)
			}
			remS[s.label] = math.Max(0, rs-consumed)
			remD[d.label] = math.Max(0, rd-credited)
			record(res, rule, s.label, d.label, w, consumed, credited)
			moved += consumed
		}
	}
	return moved
}

// applySpecial moves every matched label's remaining hours to the side channel.
func (r *Resolver) applySpecial(rule *compiledRule, remS, remD map[string]float64, res *Result) (float64, string) {
	supply := bind(rule.supply, remS)
	demand := bind(rule.demand, remD)
	if len(supply) == 0 && len(demand) == 0 {
		return 0, "no referenced label is present"
	}

	var moved float64
	for _, s := range supply {
		res.SideChannel.Supply[s.label] += remS[s.label]
		moved += remS[s.label]
		delete(remS, s.label)
	}
	for _, d := range demand {
		res.SideChannel.Demand[d.label] += remD[d.label]
		moved += remD[d.label]
		delete(remD, d.label)
	}
	if moved <= 0 {
		return 0, "no remaining hours on matched labels"
	}
	return moved, ""
}

func record(res *Result, rule *compiledRule, supply, demand string, weight, supplyHours, demandHours float64) {
	pairs, ok := res.Pairs[supply]
	if !ok {
		pairs = make(map[string]Pair)
		res.Pairs[supply] = pairs
	}
	p := pairs[demand]
	p.SupplyHours += supplyHours
	p.DemandHours += demandHours
	pairs[demand] = p

	res.Allocations = append(res.Allocations, Allocation{
		RuleID:      rule.ID,
		Strategy:    rule.Strategy,
		Supply:      supply,
		Demand:      demand,
		Weight:      weight,
		SupplyHours: supplyHours,
		DemandHours: demandHours,
		Confidence:  rule.Confidence,
	})
}

// conditionsHold checks every When condition against the run context.
// Keys and values compare case-insensitively. A value of "*" only requires
// the key to be set.
func conditionsHold(when, runCtx map[string]string) (bool, string) {
	keys := make([]string, 0, len(when))
	for k := range when {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want := when[k]
		got, ok := contextValue(runCtx, k)
		switch {
		case !ok || got == "":
			return false, fmt.Sprintf("context %s is not set", k)
		case want == "*":
		case !strings.EqualFold(got, want):
			return false, fmt.Sprintf("context %s=%s, rule wants %s", k, got, want)
		}
	}
	return true, ""
}

// contextValue looks key up exactly, then case-insensitively in key order.
func contextValue(runCtx map[string]string, key string) (string, bool) {
	if v, ok := runCtx[key]; ok {
		return v, true
	}
	keys := make([]string, 0, len(runCtx))
	for k := range runCtx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return runCtx[k], true
		}
	}
	return "", false
}

func absentReason(rule *compiledRule, supply, demand []binding) string {
	var missing []string
	if len(supply) == 0 {
		missing = append(missing, "supply "+strings.Join(rule.Supply, ", "))
	}
	if len(demand) == 0 {
		missing = append(missing, "demand "+strings.Join(rule.Demand, ", "))
	}
	return "absent labels: " + strings.Join(missing, "; ")
}

func unknownLabels(vocab *Vocabulary, provenance ledger.Provenance, in map[string]float64) []string {
	var out []string
	for _, label := range sortedLabels(in) {
		if vocab.Tag(provenance, label) == Unknown {
			out = append(out, label)
		}
	}
	return out
}

func sortedLabels(m map[string]float64) []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
