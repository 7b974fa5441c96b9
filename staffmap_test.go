package staffmap_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agentstation/staffmap"
	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/hierarchy"
	"github.com/agentstation/staffmap/pkg/ledger"
	"github.com/agentstation/staffmap/pkg/logging"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/report"
	"github.com/agentstation/staffmap/pkg/validation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newEngine(t *testing.T, opts ...staffmap.Option) staffmap.Engine {
	t.Helper()
	opts = append([]staffmap.Option{staffmap.WithLogger(logging.NewNopLogger())}, opts...)
	engine, err := staffmap.New(opts...)
	require.NoError(t, err)
	return engine
}

func exactRule(id, supply, demand string) mapping.Rule {
	return mapping.Rule{ID: id, Supply: []string{supply}, Demand: []string{demand}, Strategy: mapping.Exact}
}

type memoryRecorder struct {
	mu      sync.Mutex
	reports []*report.Report
	err     error
}

func (m *memoryRecorder) Save(_ context.Context, r *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

func TestReconcileMapsExactScenario(t *testing.T) {
	engine := newEngine(t, staffmap.WithRules(exactRule("a", "A", "A")))

	r, err := engine.ReconcileMaps(context.Background(),
		map[string]float64{"A": 100, "B": 50},
		map[string]float64{"A": 80, "C": 20},
	)
	require.NoError(t, err)

	assert.NotEmpty(t, r.Metadata.RunID)
	assert.False(t, r.Metadata.Degraded)
	assert.Equal(t, 1, r.Metadata.RuleCount)
	assert.Equal(t, engine.Registry().Fingerprint(), r.Metadata.Ruleset)

	assert.Equal(t, map[string]map[string]mapping.Pair{"A": {"A": {SupplyHours: 80, DemandHours: 80}}}, r.Mapping.Pairs)
	assert.Equal(t, map[string]float64{"A": 20, "B": 50}, r.Mapping.UnmappedSupply)
	assert.Equal(t, map[string]float64{"C": 20}, r.Mapping.UnmappedDemand)
	assert.InDelta(t, 0.64, r.Mapping.MappingAccuracy, 1e-12)

	org := r.Levels.Organization
	assert.InDelta(t, 150, org.TotalSupply, 1e-9)
	assert.InDelta(t, 100, org.TotalDemand, 1e-9)
	assert.Equal(t, []bool{true, true, true}, r.Levels.IntegrityOK())

	require.NotNil(t, r.Validation)
	assert.Len(t, r.Validation.Checks, 6)
	assert.NotEmpty(t, r.Validation.Grade)
}

func TestReconcileEmptyDemandIsDegraded(t *testing.T) {
	engine := newEngine(t, staffmap.WithRules(exactRule("a", "A", "A")))

	r, err := engine.ReconcileMaps(context.Background(), map[string]float64{"A": 100, "B": 50}, map[string]float64{})
	require.NoError(t, err)

	assert.True(t, r.Metadata.Degraded)
	assert.True(t, r.Metadata.Demand.Missing)
	assert.Equal(t, map[string]float64{"A": 100, "B": 50}, r.Mapping.UnmappedSupply)

	org := r.Levels.Organization
	assert.Zero(t, org.TotalDemand)
	assert.Zero(t, org.TotalShortage)
	assert.InDelta(t, 150, org.TotalExcess, 1e-9)

	assert.Less(t, r.Validation.Checks[validation.DataIntegrity].Score, 1.0)
	assert.NotEmpty(t, r.Metadata.Warnings)
}

func TestReconcileNilSources(t *testing.T) {
	engine := newEngine(t)

	r, err := engine.Reconcile(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, r.Metadata.Degraded)
	assert.True(t, r.Metadata.Supply.Missing)
	assert.True(t, r.Metadata.Demand.Missing)
	assert.Contains(t, r.Summary(), "degraded")
}

func TestReconcileLedgersAcceptsNil(t *testing.T) {
	engine := newEngine(t)

	r, err := engine.ReconcileLedgers(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, r.Metadata.Degraded)
	assert.Len(t, r.Metadata.Warnings, 2)
}

func TestRunContextSelectsContextualRules(t *testing.T) {
	rule := mapping.Rule{
		ID: "night-float", Supply: []string{"Float"}, Demand: []string{"ICU"},
		Strategy: mapping.Contextual, Matrix: [][]float64{{1}}, Confidence: 0.7,
		When: map[string]string{"shift": "night"},
	}
	supply := ledger.NewMapSource("roster", ledger.Supply, map[string]float64{"Float": 12}, map[string]string{"shift": "day"})
	demand := ledger.NewMapSource("census", ledger.Demand, map[string]float64{"ICU": 12}, nil)

	fromLedger := newEngine(t, staffmap.WithRules(rule))
	r, err := fromLedger.Reconcile(context.Background(), supply, demand)
	require.NoError(t, err)
	assert.Empty(t, r.Mapping.Applied)
	assert.Equal(t, "day", r.Metadata.RunContext["shift"])

	overridden := newEngine(t, staffmap.WithRules(rule), staffmap.WithRunContext(map[string]string{"shift": "night"}))
	r, err = overridden.Reconcile(context.Background(), supply, demand)
	require.NoError(t, err)
	assert.Equal(t, []string{"night-float"}, r.Mapping.Applied)
	assert.Equal(t, "night", r.Metadata.RunContext["shift"])
}

func TestHooks(t *testing.T) {
	engine := newEngine(t, staffmap.WithRules(exactRule("a", "A", "A")))

	var reports, degraded int
	var violated []hierarchy.Level
	engine.OnReport(func(*report.Report) { reports++ })
	engine.OnDegraded(func(*report.Report) { degraded++ })
	engine.OnViolation(func(_ string, level *hierarchy.LevelResult) { violated = append(violated, level.Level) })

	_, err := engine.ReconcileMaps(context.Background(), map[string]float64{"A": 10}, map[string]float64{"A": 10})
	require.NoError(t, err)
	assert.Equal(t, 1, reports)
	assert.Zero(t, degraded)
	assert.Empty(t, violated)

	_, err = engine.ReconcileMaps(context.Background(), map[string]float64{"A": 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reports)
	assert.Equal(t, 1, degraded)

	// A stated total that disagrees with the rows fails organization integrity.
	supply := ledger.NewMapSource("roster", ledger.Supply, map[string]float64{"A": 10},
		map[string]string{constants.DeclaredTotalKey: "12"})
	demand := ledger.NewMapSource("census", ledger.Demand, map[string]float64{"A": 10}, nil)
	r, err := engine.Reconcile(context.Background(), supply, demand)
	require.NoError(t, err)
	assert.True(t, r.Levels.Organization.IntegrityFailed)
	assert.Contains(t, violated, hierarchy.Organization)
}

func TestRecorder(t *testing.T) {
	recorder := &memoryRecorder{}
	engine := newEngine(t, staffmap.WithRules(exactRule("a", "A", "A")), staffmap.WithRecorder(recorder))

	r, err := engine.ReconcileMaps(context.Background(), map[string]float64{"A": 10}, map[string]float64{"A": 10})
	require.NoError(t, err)
	require.Len(t, recorder.reports, 1)
	assert.Equal(t, r.Metadata.RunID, recorder.reports[0].Metadata.RunID)

	failing := &memoryRecorder{err: assert.AnError}
	engine = newEngine(t, staffmap.WithRecorder(failing))
	r, err = engine.ReconcileMaps(context.Background(), map[string]float64{"A": 10}, map[string]float64{"A": 10})
	require.NoError(t, err)
	assert.Contains(t, r.Metadata.Warnings[len(r.Metadata.Warnings)-1], "run history not recorded")
}

func TestClockDrivesTiming(t *testing.T) {
	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	var calls int
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 100 * time.Millisecond)
	}
	engine := newEngine(t, staffmap.WithClock(clock), staffmap.WithPerformanceBudget(time.Second))

	r, err := engine.ReconcileMaps(context.Background(), map[string]float64{"A": 10}, map[string]float64{"A": 10})
	require.NoError(t, err)
	assert.InDelta(t, 100, r.Metadata.DurationMS, 1e-9)
	assert.Equal(t, time.UTC, r.Metadata.GeneratedAt.Location())
	assert.InDelta(t, 1, r.Validation.Checks[validation.PerformanceEfficiency].Score, 1e-12)
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - supply: [A]\n    demand: [B]\n    strategy: FUZZY\n"), 0o600))

	tests := []struct {
		name string
		opts []staffmap.Option
	}{
		{"unknown strategy", []staffmap.Option{staffmap.WithRulesFile(bad)}},
		{"missing rules file", []staffmap.Option{staffmap.WithRulesFile(filepath.Join(dir, "absent.yaml"))}},
		{"zero slot", []staffmap.Option{staffmap.WithSlotMinutes(0)}},
		{"negative epsilon", []staffmap.Option{staffmap.WithEpsilon(-1)}},
		{"penalty above one", []staffmap.Option{staffmap.WithMismatchPenalties(2, 0.1, 0.1)}},
		{"unknown check", []staffmap.Option{staffmap.WithValidation(validation.WithThreshold("speed", 0.5))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := staffmap.New(tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err), "got %v", err)
		})
	}
}

func TestReconcileCanceled(t *testing.T) {
	engine := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.ReconcileMaps(ctx, map[string]float64{"A": 1}, map[string]float64{"A": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcileRejectsNonFiniteHours(t *testing.T) {
	for name, bad := range map[string]float64{"inf": math.Inf(1), "nan": math.NaN()} {
		t.Run(name, func(t *testing.T) {
			engine := newEngine(t, staffmap.WithRules(exactRule("a", "A", "A")))

			r, err := engine.ReconcileMaps(context.Background(),
				map[string]float64{"A": 10, "B": bad},
				map[string]float64{"A": 10},
			)
			require.NoError(t, err)

			assert.InDelta(t, 10, r.Levels.Organization.TotalSupply, 1e-9)
			assert.Equal(t, 1, r.Metadata.Supply.Rejected)

			for _, format := range []report.Format{report.FormatJSON, report.FormatYAML} {
				_, err := r.Marshal(format)
				assert.NoError(t, err, format)
			}
		})
	}
}

func TestRunIDLoggedOnce(t *testing.T) {
	tl := logging.NewTestLogger(t)
	engine, err := staffmap.New(staffmap.WithLogger(tl.Logger), staffmap.WithRules(exactRule("a", "A", "A")))
	require.NoError(t, err)

	r, err := engine.ReconcileMaps(context.Background(), map[string]float64{"A": 1}, map[string]float64{"A": 1})
	require.NoError(t, err)

	var found bool
	for _, line := range tl.Lines() {
		if strings.Contains(line, "Reconciliation complete") {
			found = true
			assert.Equal(t, 1, strings.Count(line, `"run_id"`), line)
			assert.Contains(t, line, r.Metadata.RunID)
		}
	}
	assert.True(t, found, tl.Output())
}
