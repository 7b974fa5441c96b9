package sqlsource_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/staffmap/internal/sources/sqlsource"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlsource.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE shifts (
		role TEXT, unit TEXT, staff_id TEXT, day TEXT, slot_count REAL, minutes REAL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO shifts VALUES
		('RN', 'north', 'emp-1', '2026-03-01', 16, 30),
		('RN', 'south', 'emp-2', '2026-03-02', 8, NULL),
		('LPN', NULL, NULL, NULL, 4, 60)`)
	require.NoError(t, err)
	return db
}

func TestRows(t *testing.T) {
	db := openDB(t)
	src, err := sqlsource.New(db, ledger.Supply, "shifts",
		sqlsource.WithColumns(sqlsource.Columns{
			Label: "role", Partition: "unit", Entity: "staff_id", Date: "day", Slots: "slot_count", SlotMinutes: "minutes",
		}),
		sqlsource.WithMetadata(map[string]string{"shift": "night"}),
	)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "role", "unit", "staff_id", "day", "slot_count", "minutes" FROM "shifts"`, src.Query())

	rows, err := src.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "RN", rows[0].Label)
	assert.Equal(t, "north", rows[0].Partition)
	assert.True(t, rows[0].Date.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.InDelta(t, 8, rows[0].Contribution(30), 1e-12)
	assert.Zero(t, rows[1].SlotMinutes)
	assert.Empty(t, rows[2].Partition)
	assert.True(t, rows[2].Date.IsZero())

	extractor, err := ledger.NewExtractor()
	require.NoError(t, err)
	l, err := extractor.ExtractOne(context.Background(), ledger.Supply, src)
	require.NoError(t, err)
	assert.InDelta(t, 12, l.Records["RN"].Hours, 1e-12)
	assert.InDelta(t, 4, l.Records["LPN"].Hours, 1e-12)
	assert.Equal(t, 2, l.Metadata.Entities)
	assert.Equal(t, "night", l.Metadata.Upstream["shift"])
	assert.Equal(t, "shifts", src.Name())
}

func TestNewRejectsUnsafeIdentifiers(t *testing.T) {
	db := openDB(t)

	_, err := sqlsource.New(db, ledger.Supply, "shifts; DROP TABLE shifts")
	assert.True(t, errors.IsValidationError(err))

	_, err = sqlsource.New(db, ledger.Supply, "shifts", sqlsource.WithColumns(sqlsource.Columns{Label: "role", Hours: "hours--"}))
	assert.True(t, errors.IsValidationError(err))

	_, err = sqlsource.New(db, ledger.Supply, "shifts", sqlsource.WithColumns(sqlsource.Columns{}))
	assert.True(t, errors.IsValidationError(err))

	_, err = sqlsource.New(nil, ledger.Supply, "shifts")
	assert.True(t, errors.IsValidationError(err))
}

func TestRowsMissingTable(t *testing.T) {
	db := openDB(t)
	src, err := sqlsource.New(db, ledger.Demand, "census", sqlsource.WithName("census table"))
	require.NoError(t, err)

	_, err = src.Rows(context.Background())
	require.Error(t, err)

	extractor, err := ledger.NewExtractor()
	require.NoError(t, err)
	l, err := extractor.ExtractOne(context.Background(), ledger.Demand, src)
	require.NoError(t, err)
	assert.True(t, l.Missing)
	assert.Equal(t, "census table", l.Source)
}
