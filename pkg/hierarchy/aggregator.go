package hierarchy

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/staffmap/pkg/logging"
	"github.com/agentstation/staffmap/pkg/mapping"
)

// Input is everything the aggregation pipeline reads. It is never modified.
type Input struct {
	// Supply and Demand are the raw label to hours maps.
	Supply map[string]float64
	Demand map[string]float64
	// Mapping is the resolver output for the same maps.
	Mapping *mapping.Result
	// Partitions is measured supply per sub-partition. When empty, each
	// supply label is its own partition.
	Partitions map[string]float64
	// DeclaredSupply and DeclaredDemand are totals stated by the sources.
	// Nil means the sum of the raw map is the stated total.
	DeclaredSupply *float64
	DeclaredDemand *float64
}

// Levels holds the three level results of one run.
type Levels struct {
	Organization *LevelResult `json:"organization" yaml:"organization"`
	Category     *LevelResult `json:"category" yaml:"category"`
	SubPartition *LevelResult `json:"sub_partition" yaml:"sub_partition"`
}

// All returns the levels in pipeline order.
func (l *Levels) All() []*LevelResult {
	return []*LevelResult{l.Organization, l.Category, l.SubPartition}
}

// IntegrityOK reports, per level in pipeline order, whether its own check passed.
func (l *Levels) IntegrityOK() []bool {
	out := make([]bool, 0, 3)
	for _, lr := range l.All() {
		out = append(out, lr != nil && !lr.IntegrityFailed)
	}
	return out
}

// Aggregator runs ORGANIZATION -> CATEGORY -> SUB_PARTITION.
type Aggregator struct {
	opts *options
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts ...Option) (*Aggregator, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &Aggregator{opts: o}, nil
}

func (a *Aggregator) log(ctx context.Context) *zerolog.Logger {
	if a.opts.logger != nil {
		return a.opts.logger
	}
	return logging.FromContext(ctx)
}

// Aggregate computes all three levels. ORGANIZATION runs first; CATEGORY and
// SUB_PARTITION then read it concurrently. Level failures are recorded on
// the levels; the only error is context cancellation.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (*Levels, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Mapping == nil {
		in.Mapping = &mapping.Result{}
	}
	in.Supply = validHours(in.Supply)
	in.Demand = validHours(in.Demand)

	levels := &Levels{Organization: a.organization(in)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		levels.Category = a.category(in, levels.Organization)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		levels.SubPartition = a.subPartition(in, levels.Organization)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ctx = logging.WithLogger(ctx, a.log(ctx))
	for _, lr := range levels.All() {
		logger := logging.FromContext(logging.WithLevel(ctx, lr.Level.String()))
		event := logger.Debug()
		if lr.IntegrityFailed {
			event = logger.Warn()
		}
		event.Float64("supply", lr.TotalSupply).
			Float64("demand", lr.TotalDemand).
			Float64("quality", lr.QualityScore).
			Int("violations", len(lr.Violations)).
			Msg("Aggregated level")
	}
	return levels, nil
}

// organization totals every raw label, side channel included.
func (a *Aggregator) organization(in Input) *LevelResult {
	supply := sumMap(in.Supply)
	demand := sumMap(in.Demand)
	if in.DeclaredSupply != nil {
		supply = *in.DeclaredSupply
	}
	if in.DeclaredDemand != nil {
		demand = *in.DeclaredDemand
	}

	lr := newLevel(Organization, supply, demand)
	for _, label := range unionKeys(in.Supply, in.Demand) {
		lr.Breakdown[label] = newBreakdown(in.Supply[label], in.Demand[label])
	}

	lr.checkIntegrity(a.opts.epsilon)
	lr.score(1, a.opts.violationPenalty)
	return lr
}

// category totals mapped pairs per demand label and lists the side channel
// separately.
func (a *Aggregator) category(in Input, org *LevelResult) *LevelResult {
	res := in.Mapping
	lr := newLevel(Category, res.TotalMappedSupply, res.TotalMappedDemand)

	for demand, pair := range res.ByDemand() {
		b := newBreakdown(pair.SupplyHours, pair.DemandHours)
		b.Contributors = res.ContributorsOf(demand)
		b.ResidueDemand = res.UnmappedDemand[demand]
		for _, s := range b.Contributors {
			b.ResidueSupply += res.UnmappedSupply[s]
		}
		lr.Breakdown[demand] = b
	}

	for _, side := range []map[string]float64{res.SideChannel.Supply, res.SideChannel.Demand} {
		for label := range side {
			key := label
			if _, taken := lr.Breakdown[key]; taken && !lr.Breakdown[key].SideChannel {
				key = label + " (side channel)"
			}
			if _, done := lr.Breakdown[key]; done {
				continue
			}
			b := newBreakdown(res.SideChannel.Supply[label], res.SideChannel.Demand[label])
			b.SideChannel = true
			lr.Breakdown[key] = b
		}
	}

	lr.checkIntegrity(a.opts.epsilon)

	base := 0.0
	if org.TotalSupply > 0 {
		base = res.TotalMappedSupply / org.TotalSupply
	}
	lr.score(base, a.opts.violationPenalty)
	return lr
}

// subPartition splits organization supply by partition and estimates demand
// proportionally: sub_demand = org_demand x sub_supply / org_supply.
func (a *Aggregator) subPartition(in Input, org *LevelResult) *LevelResult {
	partitions := in.Partitions
	if len(partitions) == 0 {
		partitions = in.Supply
	}

	var supply, demand float64
	entries := make(map[string]Breakdown, len(partitions))
	for _, key := range sortedKeys(partitions) {
		sub := partitions[key]
		var subDemand float64
		if org.TotalSupply > 0 {
			subDemand = org.TotalDemand * sub / org.TotalSupply
		}
		b := newBreakdown(sub, subDemand)
		b.Estimated = true
		entries[key] = b
		supply += sub
		demand += subDemand
	}

	lr := newLevel(SubPartition, supply, demand)
	lr.Breakdown = entries
	lr.Estimated = true

	// The partitions must account for the whole organization.
	lr.checkTotal("supply", org.TotalSupply, supply, a.opts.epsilon)
	if org.TotalSupply <= 0 && org.TotalDemand > a.opts.epsilon {
		lr.IntegrityFailed = true
		lr.violate("%s demand %.2fh cannot be allocated: organization supply is zero", SubPartition, org.TotalDemand)
	} else {
		lr.checkTotal("demand", org.TotalDemand, demand, a.opts.epsilon)
	}

	lr.score(1, a.opts.violationPenalty)
	return lr
}

// validHours drops entries the resolver also ignores, so every level totals
// the same labels.
func validHours(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, h := range m {
		if h >= 0 && !math.IsInf(h, 0) {
			out[k] = h
		}
	}
	return out
}

func sumMap(m map[string]float64) float64 {
	var total float64
	for _, k := range sortedKeys(m) {
		total += m[k]
	}
	return total
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionKeys(a, b map[string]float64) []string {
	set := make(map[string]float64, len(a)+len(b))
	for k := range a {
		set[k] = 0
	}
	for k := range b {
		set[k] = 0
	}
	return sortedKeys(set)
}
