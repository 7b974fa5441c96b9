package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/staffmap/internal/store"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/report"
	"github.com/agentstation/staffmap/pkg/validation"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "history", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id string, at time.Time, grade validation.Grade) *report.Report {
	return &report.Report{
		Metadata: report.Metadata{
			RunID:       id,
			GeneratedAt: at,
			Ruleset:     "0123456789abcdef",
			Supply:      report.LedgerSummary{Source: "roster", Hours: 150},
			Demand:      report.LedgerSummary{Source: "census", Hours: 100},
		},
		Mapping:    &mapping.Result{MappingAccuracy: 0.64},
		Validation: &validation.Report{Grade: grade, WeightedScore: 0.71},
	}
}

func TestSaveListGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleReport("aaaa1111-run", first, validation.GradeB)))
	require.NoError(t, s.Save(ctx, sampleReport("bbbb2222-run", first.Add(time.Hour), validation.GradeC)))

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bbbb2222-run", entries[0].ID)
	assert.Equal(t, "C", entries[0].Grade)
	assert.Equal(t, "aaaa1111-run", entries[1].ID)
	assert.True(t, entries[1].GeneratedAt.Equal(first))
	assert.InDelta(t, 0.64, entries[1].MappingAccuracy, 1e-12)
	assert.InDelta(t, 150, entries[1].SupplyHours, 1e-12)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := s.Get(ctx, "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "aaaa1111-run", got.Metadata.RunID)
	assert.Equal(t, validation.GradeB, got.Validation.Grade)
	assert.Equal(t, "roster", got.Metadata.Supply.Source)
}

func TestSaveReplacesRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	at := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleReport("run-1", at, validation.GradeC)))
	require.NoError(t, s.Save(ctx, sampleReport("run-1", at, validation.GradeA)))

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Grade)
}

func TestGetErrors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	at := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleReport("run-1", at, validation.GradeC)))
	require.NoError(t, s.Save(ctx, sampleReport("run-2", at, validation.GradeC)))

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))

	_, err = s.Get(ctx, "run-")
	assert.True(t, errors.IsValidationError(err))

	_, err = s.Get(ctx, "")
	assert.True(t, errors.IsValidationError(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Save(ctx, sampleReport("run-1", time.Now(), validation.GradeC)))

	require.NoError(t, s.Delete(ctx, "run-1"))
	assert.True(t, errors.IsNotFound(s.Delete(ctx, "run-1")))
}

func TestSaveRequiresRunID(t *testing.T) {
	s := openStore(t)
	err := s.Save(context.Background(), &report.Report{})
	assert.True(t, errors.IsValidationError(err))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := store.Open("")
	assert.Error(t, err)
}

func TestGetTreatsPrefixLiterally(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	at := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleReport("a_b-1", at, validation.GradeC)))
	require.NoError(t, s.Save(ctx, sampleReport("axb-2", at, validation.GradeC)))

	got, err := s.Get(ctx, "a_")
	require.NoError(t, err)
	assert.Equal(t, "a_b-1", got.Metadata.RunID)

	_, err = s.Get(ctx, "%")
	assert.True(t, errors.IsNotFound(err))
}
