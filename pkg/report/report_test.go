package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/hierarchy"
	"github.com/agentstation/staffmap/pkg/ledger"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/report"
	"github.com/agentstation/staffmap/pkg/validation"
)

func sample() *report.Report {
	return &report.Report{
		Metadata: report.Metadata{
			RunID:       "3f2c9a10-aaaa-bbbb-cccc-000000000000",
			GeneratedAt: time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC),
			DurationMS:  12.5,
			Ruleset:     "0123456789abcdef",
			RuleCount:   1,
			Supply:      report.LedgerSummary{Source: "roster", Hours: 150},
			Demand:      report.LedgerSummary{Source: "grid", Hours: 100},
		},
		Mapping: &mapping.Result{
			Pairs:           map[string]map[string]mapping.Pair{"A": {"A": {SupplyHours: 80, DemandHours: 80}}},
			UnmappedSupply:  map[string]float64{"A": 20, "B": 50},
			UnmappedDemand:  map[string]float64{"C": 20},
			MappingAccuracy: 0.64,
			IntegrityScore:  1,
		},
		Levels: &hierarchy.Levels{
			Organization: &hierarchy.LevelResult{
				Level: hierarchy.Organization, TotalSupply: 150, TotalDemand: 100, TotalExcess: 50,
			},
		},
		Validation: &validation.Report{
			Order:         []string{"a", "b"},
			Checks:        map[string]validation.CheckResult{"a": {Passed: true}, "b": {Passed: false}},
			WeightedScore: 0.71,
			Grade:         validation.GradeB,
		},
	}
}

func TestSummary(t *testing.T) {
	r := sample()
	assert.Equal(t,
		"run 3f2c9a10: grade B (score 0.71, 1/2 checks passed), supply 150.00h, demand 100.00h, shortage 0.00h, excess 50.00h, mapping accuracy 0.64",
		r.Summary())

	r.Metadata.Degraded = true
	r.Validation = nil
	assert.Contains(t, r.Summary(), "grade C")
	assert.Contains(t, r.Summary(), ", degraded")
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, format := range []report.Format{report.FormatJSON, report.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := sample().Marshal(format)
			require.NoError(t, err)

			parsed, err := report.Parse(data, format)
			require.NoError(t, err)
			assert.Equal(t, sample().Metadata.RunID, parsed.Metadata.RunID)
			assert.True(t, sample().Metadata.GeneratedAt.Equal(parsed.Metadata.GeneratedAt))
			assert.InDelta(t, 80, parsed.Mapping.Pairs["A"]["A"].DemandHours, 1e-12)
			assert.Equal(t, validation.GradeB, parsed.Grade())
		})
	}
}

func TestWriteFilePicksFormat(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out", "run.json")
	require.NoError(t, sample().WriteFile(jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("{")))
	assert.Contains(t, string(data), `"mapping_accuracy": 0.64`)

	yamlPath := filepath.Join(dir, "run.yml")
	require.NoError(t, sample().WriteFile(yamlPath))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id:")
	assert.Contains(t, string(data), "3f2c9a10-aaaa-bbbb-cccc-000000000000")
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := sample().Marshal("xml")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = report.Parse([]byte("{"), report.FormatJSON)
	require.Error(t, err)
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestSummarizeLedger(t *testing.T) {
	l := &ledger.Ledger{
		Source:  "roster",
		Records: map[string]ledger.CategoryRecord{"A": {Label: "A", Hours: 12}},
		Metadata: ledger.Metadata{
			Records:   1,
			FirstDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			LastDate:  time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC),
		},
	}
	s := report.Summarize(l)
	assert.InDelta(t, 12, s.Hours, 1e-12)
	assert.Equal(t, "2026-03-01", s.FirstDate)
	assert.Equal(t, "2026-03-07", s.LastDate)
	assert.True(t, report.Summarize(nil).Missing)
}
