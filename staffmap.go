// Package staffmap reconciles a supply ledger of staffed hours against a
// demand ledger of required coverage whose category vocabularies differ.
//
// Curated mapping rules align the two vocabularies; the aligned hours are
// aggregated at organization, category and sub-partition level, checked for
// consistency, and graded. Every run yields a report, even when a ledger is
// missing: the report is then marked degraded and graded accordingly.
//
//	engine, err := staffmap.New(staffmap.WithRulesFile("rules.yaml"))
//	if err != nil {
//		return err
//	}
//	r, err := engine.ReconcileMaps(ctx, supply, demand)
//	fmt.Println(r.Summary())
package staffmap

import (
	"context"
	"maps"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/hierarchy"
	"github.com/agentstation/staffmap/pkg/ledger"
	"github.com/agentstation/staffmap/pkg/logging"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/report"
	"github.com/agentstation/staffmap/pkg/validation"
)

// Engine runs reconciliations against one immutable rule set
type Engine interface {
	// Reconcile extracts both sources and reconciles them
	Reconcile(ctx context.Context, supply, demand ledger.Source) (*report.Report, error)

	// ReconcileMaps reconciles pre-aggregated label to hours maps
	ReconcileMaps(ctx context.Context, supply, demand map[string]float64) (*report.Report, error)

	// ReconcileLedgers reconciles already extracted ledgers
	ReconcileLedgers(ctx context.Context, supply, demand *ledger.Ledger) (*report.Report, error)

	// Registry returns the rules the engine applies
	Registry() *mapping.Registry

	// OnReport registers a callback for every finished report
	OnReport(ReportHook)

	// OnDegraded registers a callback for runs with a missing ledger
	OnDegraded(DegradedHook)

	// OnViolation registers a callback for levels that failed integrity
	OnViolation(ViolationHook)
}

// engine is the internal implementation of the Engine interface
type engine struct {
	config     *config
	extractor  *ledger.Extractor
	resolver   *mapping.Resolver
	aggregator *hierarchy.Aggregator
	validator  *hierarchy.CrossLevelValidator
	suite      *validation.Suite

	*hooks
}

// New creates an Engine. Malformed rules or configuration fail here; nothing
// that depends on ledger data can fail later.
func New(opts ...Option) (Engine, error) {
	cfg, err := defaultConfig().apply(opts...)
	if err != nil {
		return nil, err
	}

	if cfg.rulesPath != "" {
		registry, err := mapping.LoadRegistry(cfg.rulesPath)
		if err != nil {
			return nil, err
		}
		cfg.registry = registry
	}
	if cfg.registry == nil {
		cfg.registry = mapping.MustNewRegistry()
	}

	extractor, err := ledger.NewExtractor(
		ledger.WithSlotMinutes(cfg.slotMinutes),
		ledger.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, errors.NewConfigError("engine", "invalid extractor settings", err)
	}

	resolver, err := mapping.NewResolver(cfg.registry,
		mapping.WithResolverLogger(cfg.logger),
		mapping.WithSuggestions(cfg.suggestions),
	)
	if err != nil {
		return nil, err
	}

	levelOpts := []hierarchy.Option{
		hierarchy.WithEpsilon(cfg.epsilon),
		hierarchy.WithViolationPenalty(cfg.violationPenalty),
		hierarchy.WithSupplyMismatchPenalty(cfg.supplyPenalty),
		hierarchy.WithDemandMismatchPenalty(cfg.demandPenalty),
		hierarchy.WithEstimatedDemandPenalty(cfg.estimatedDemandPenalty),
		hierarchy.WithLogger(cfg.logger),
	}
	aggregator, err := hierarchy.NewAggregator(levelOpts...)
	if err != nil {
		return nil, err
	}
	validator, err := hierarchy.NewCrossLevelValidator(levelOpts...)
	if err != nil {
		return nil, err
	}

	suite, err := validation.NewSuite(append(cfg.suiteOptions, validation.WithLogger(cfg.logger))...)
	if err != nil {
		return nil, err
	}

	return &engine{
		config:     cfg,
		extractor:  extractor,
		resolver:   resolver,
		aggregator: aggregator,
		validator:  validator,
		suite:      suite,
		hooks:      newHooks(),
	}, nil
}

// Registry implements Engine.
func (e *engine) Registry() *mapping.Registry {
	return e.config.registry
}

func (e *engine) log(ctx context.Context) *zerolog.Logger {
	if e.config.logger != nil {
		return e.config.logger
	}
	return logging.FromContext(ctx)
}

// ReconcileMaps implements Engine.
func (e *engine) ReconcileMaps(ctx context.Context, supply, demand map[string]float64) (*report.Report, error) {
	return e.Reconcile(ctx,
		ledger.NewMapSource("supply", ledger.Supply, supply, nil),
		ledger.NewMapSource("demand", ledger.Demand, demand, nil),
	)
}

// Reconcile implements Engine.
func (e *engine) Reconcile(ctx context.Context, supply, demand ledger.Source) (*report.Report, error) {
	start := e.config.clock()
	supplyLedger, demandLedger, err := e.extractor.Extract(ctx, supply, demand)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, start, supplyLedger, demandLedger)
}

// ReconcileLedgers implements Engine.
func (e *engine) ReconcileLedgers(ctx context.Context, supply, demand *ledger.Ledger) (*report.Report, error) {
	if supply == nil {
		supply = ledger.Empty(ledger.Supply, "", errors.NewMissingSourceError("supply", "<none>", nil).Error())
	}
	if demand == nil {
		demand = ledger.Empty(ledger.Demand, "", errors.NewMissingSourceError("demand", "<none>", nil).Error())
	}
	return e.run(ctx, e.config.clock(), supply, demand)
}

func (e *engine) run(ctx context.Context, start time.Time, supply, demand *ledger.Ledger) (*report.Report, error) {
	runID := uuid.NewString()
	ctx = logging.WithRun(logging.WithLogger(ctx, e.log(ctx)), runID)
	logger := logging.FromContext(ctx)

	supplyHours := supply.Hours()
	demandHours := demand.Hours()

	runContext := make(map[string]string)
	maps.Copy(runContext, supply.Metadata.Upstream)
	maps.Copy(runContext, demand.Metadata.Upstream)
	maps.Copy(runContext, e.config.runContext)

	res, err := e.resolver.Resolve(ctx, supplyHours, demandHours, runContext)
	if err != nil {
		return nil, err
	}

	levels, err := e.aggregator.Aggregate(ctx, hierarchy.Input{
		Supply:         supplyHours,
		Demand:         demandHours,
		Mapping:        res,
		Partitions:     supply.PartitionHours(),
		DeclaredSupply: declaredTotal(supply),
		DeclaredDemand: declaredTotal(demand),
	})
	if err != nil {
		return nil, err
	}
	cross := e.validator.Validate(ctx, levels, res.SideChannel)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	elapsed := e.config.clock().Sub(start)

	checks := e.suite.Run(ctx, &validation.Input{
		SupplyPresent: !supply.Missing,
		DemandPresent: !demand.Missing,
		Mapping:       res,
		Levels:        levels,
		CrossLevel:    cross,
		Elapsed:       elapsed,
	})

	var warnings []string
	warnings = append(warnings, supply.Metadata.Warnings...)
	warnings = append(warnings, demand.Metadata.Warnings...)
	warnings = append(warnings, res.Warnings...)

	r := &report.Report{
		Metadata: report.Metadata{
			RunID:       runID,
			GeneratedAt: e.config.clock().UTC(),
			DurationMS:  float64(elapsed) / float64(time.Millisecond),
			Ruleset:     e.config.registry.Fingerprint(),
			RuleCount:   e.config.registry.Len(),
			Supply:      report.Summarize(supply),
			Demand:      report.Summarize(demand),
			RunContext:  runContext,
			Degraded:    supply.Missing || demand.Missing,
			Warnings:    warnings,
		},
		Mapping:    res,
		Levels:     levels,
		CrossLevel: cross,
		Validation: checks,
	}
	if len(r.Metadata.RunContext) == 0 {
		r.Metadata.RunContext = nil
	}

	if e.config.recorder != nil {
		if err := e.config.recorder.Save(ctx, r); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run history")
			r.Metadata.Warnings = append(r.Metadata.Warnings, "run history not recorded: "+err.Error())
		}
	}

	e.trigger(r)

	logger.Info().
		Str("grade", string(checks.Grade)).
		Float64("weighted_score", checks.WeightedScore).
		Float64("mapping_accuracy", res.MappingAccuracy).
		Bool("degraded", r.Metadata.Degraded).
		Dur("elapsed", elapsed).
		Msg("Reconciliation complete")
	return r, nil
}

// declaredTotal reads the total a source states for itself, if any.
func declaredTotal(l *ledger.Ledger) *float64 {
	raw, ok := l.Metadata.Upstream[constants.DeclaredTotalKey]
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
