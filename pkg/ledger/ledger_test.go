package ledger_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	staffErrors "github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
	"github.com/agentstation/staffmap/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingSource struct {
	err error
}

func (f failingSource) Name() string                               { return "broken.yaml" }
func (f failingSource) Provenance() ledger.Provenance              { return ledger.Demand }
func (f failingSource) Metadata() map[string]string                { return map[string]string{"site": "north"} }
func (f failingSource) Rows(context.Context) ([]ledger.Row, error) { return nil, f.err }

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestRowContribution(t *testing.T) {
	tests := []struct {
		name string
		row  ledger.Row
		want float64
	}{
		{name: "supply slots", row: ledger.Row{Slots: 4}, want: 2},
		{name: "demand coverage grid", row: ledger.Row{Coverage: []float64{1, 2, 1}}, want: 2},
		{name: "row slot duration wins", row: ledger.Row{Slots: 2, SlotMinutes: 60}, want: 2},
		{name: "pre-aggregated hours", row: ledger.Row{Hours: 7.5}, want: 7.5},
		{name: "coverage takes precedence", row: ledger.Row{Coverage: []float64{2}, Slots: 10, Hours: 99}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.row.Contribution(30), 1e-9)
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "Charge Nurse", ledger.NormalizeLabel("  Charge\t  Nurse \n"))
	// NFKC folds the full-width form into ASCII.
	assert.Equal(t, "RN", ledger.NormalizeLabel("ＲＮ"))
	assert.Equal(t, "charge nurse", ledger.NormalizeLabel("charge nurse"), "case is preserved")
	assert.Empty(t, ledger.NormalizeLabel("   "))
}

func TestExtractOneFoldsRows(t *testing.T) {
	ex, err := ledger.NewExtractor()
	require.NoError(t, err)

	rows := []ledger.Row{
		{Label: "Charge Nurse", Partition: "ICU", Entity: "e1", Date: day(3), Slots: 16},
		{Label: "Charge  Nurse", Partition: "ER", Entity: "e2", Date: day(1), Slots: 8},
		{Label: "Tech", Partition: "ICU", Entity: "e1", Date: day(5), Hours: 6},
		{Label: "Tech", Entity: "e3", Hours: -2},
		{Label: "  ", Hours: 3},
	}
	src := ledger.NewRowSource("roster", ledger.Supply, rows, map[string]string{"pattern_set": "v2"})

	l, err := ex.ExtractOne(context.Background(), ledger.Supply, src)
	require.NoError(t, err)

	assert.False(t, l.Missing)
	assert.Equal(t, map[string]float64{"Charge Nurse": 12, "Tech": 6}, l.Hours())
	assert.InDelta(t, 18, l.Total(), 1e-9)
	assert.Equal(t, []string{"Charge Nurse", "Tech"}, l.Labels())
	assert.Equal(t, map[string]float64{"ICU": 14, "ER": 4}, l.Partitions)

	md := l.Metadata
	assert.Equal(t, 5, md.Rows)
	assert.Equal(t, 2, md.Rejected)
	assert.Equal(t, 2, md.Records)
	assert.Equal(t, 2, md.Entities)
	assert.Equal(t, day(1), md.FirstDate)
	assert.Equal(t, day(5), md.LastDate)
	assert.Equal(t, map[string]string{"Charge  Nurse": "Charge Nurse"}, md.Aliases)
	assert.Equal(t, "v2", md.Upstream["pattern_set"])
	assert.Len(t, md.Warnings, 2)

	nurse := l.Records["Charge Nurse"]
	assert.Equal(t, ledger.Supply, nurse.Provenance)
	assert.Equal(t, 2, nurse.Metadata.Rows)
	assert.Equal(t, []string{"Charge  Nurse"}, nurse.Metadata.Aliases)
}

func TestExtractMissingSources(t *testing.T) {
	ex, err := ledger.NewExtractor()
	require.NoError(t, err)

	t.Run("nil source", func(t *testing.T) {
		l, err := ex.ExtractOne(context.Background(), ledger.Supply, nil)
		require.NoError(t, err)
		assert.True(t, l.Missing)
		assert.Empty(t, l.Hours())
		assert.Zero(t, l.Total())
	})

	t.Run("read failure degrades", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), tl.Logger)

		l, err := ex.ExtractOne(ctx, ledger.Demand, failingSource{err: errors.New("disk gone")})
		require.NoError(t, err)
		assert.True(t, l.Missing)
		assert.True(t, l.Degraded())
		require.Len(t, l.Metadata.Warnings, 1)
		assert.Contains(t, l.Metadata.Warnings[0], "demand ledger broken.yaml unavailable: disk gone")
		assert.Equal(t, "north", l.Metadata.Upstream["site"])
		tl.AssertContains(t, "Ledger source unavailable")
	})

	t.Run("empty source", func(t *testing.T) {
		l, err := ex.ExtractOne(context.Background(), ledger.Demand, ledger.NewMapSource("grid", ledger.Demand, nil, nil))
		require.NoError(t, err)
		assert.True(t, l.Missing)
		assert.Equal(t, []string{"demand ledger grid is empty"}, l.Metadata.Warnings)
	})

	t.Run("only rejected rows", func(t *testing.T) {
		src := ledger.NewRowSource("bad", ledger.Supply, []ledger.Row{{Label: "X", Hours: -1}}, nil)
		l, err := ex.ExtractOne(context.Background(), ledger.Supply, src)
		require.NoError(t, err)
		assert.True(t, l.Missing)
		assert.Equal(t, 1, l.Metadata.Rejected)
	})
}

func TestExtractConcurrent(t *testing.T) {
	ex, err := ledger.NewExtractor(ledger.WithSlotMinutes(60))
	require.NoError(t, err)

	supply := ledger.NewMapSource("supply", ledger.Supply, map[string]float64{"A": 100, "B": 50}, nil)
	demand := ledger.NewRowSource("demand", ledger.Demand, []ledger.Row{
		{Label: "A", Coverage: []float64{40, 40}},
		{Label: "C", Coverage: []float64{20}},
	}, nil)

	s, d, err := ex.Extract(context.Background(), supply, demand)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 100, "B": 50}, s.Hours())
	assert.Equal(t, map[string]float64{"A": 80, "C": 20}, d.Hours())
	assert.Empty(t, s.Partitions, "rows without partitions leave no partition breakdown")
}

func TestExtractCanceled(t *testing.T) {
	ex, err := ledger.NewExtractor()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := ledger.NewMapSource("supply", ledger.Supply, map[string]float64{"A": 1}, nil)
	_, _, err = ex.Extract(ctx, src, src)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewExtractorRejectsBadSlot(t *testing.T) {
	_, err := ledger.NewExtractor(ledger.WithSlotMinutes(0))
	require.Error(t, err)
	assert.True(t, staffErrors.IsValidationError(err))
}

func TestExtractRejectsNonFiniteHours(t *testing.T) {
	ex, err := ledger.NewExtractor()
	require.NoError(t, err)

	src := ledger.NewRowSource("roster", ledger.Supply, []ledger.Row{
		{Label: "A", Hours: 10},
		{Label: "B", Hours: math.Inf(1)},
		{Label: "C", Hours: math.NaN()},
		{Label: "D", Slots: math.Inf(-1)},
	}, nil)

	l, err := ex.ExtractOne(context.Background(), ledger.Supply, src)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 10}, l.Hours())
	assert.Equal(t, 3, l.Metadata.Rejected)
	assert.Len(t, l.Metadata.Warnings, 3)
	assert.InDelta(t, 10, l.Total(), 1e-12)
}

func TestExtractLogsLedgerField(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ex, err := ledger.NewExtractor(ledger.WithLogger(tl.Logger))
	require.NoError(t, err)

	_, err = ex.ExtractOne(context.Background(), ledger.Demand, ledger.NewMapSource("census", ledger.Demand, map[string]float64{"A": 1}, nil))
	require.NoError(t, err)
	tl.AssertContains(t, `"ledger":"demand"`)
	tl.AssertContains(t, "Extracted ledger")
}
