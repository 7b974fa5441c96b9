// Package store keeps a history of reconciliation reports in SQLite.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	// Pure Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/logging"
	"github.com/agentstation/staffmap/pkg/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	ruleset TEXT NOT NULL,
	grade TEXT NOT NULL,
	weighted_score REAL NOT NULL,
	mapping_accuracy REAL NOT NULL,
	degraded INTEGER NOT NULL,
	supply_hours REAL NOT NULL,
	demand_hours REAL NOT NULL,
	report TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at);
`

// Entry is one row of run history.
type Entry struct {
	ID              string    `json:"id" yaml:"id"`
	GeneratedAt     time.Time `json:"generated_at" yaml:"generated_at"`
	Ruleset         string    `json:"ruleset" yaml:"ruleset"`
	Grade           string    `json:"grade" yaml:"grade"`
	WeightedScore   float64   `json:"weighted_score" yaml:"weighted_score"`
	MappingAccuracy float64   `json:"mapping_accuracy" yaml:"mapping_accuracy"`
	Degraded        bool      `json:"degraded" yaml:"degraded"`
	SupplyHours     float64   `json:"supply_hours" yaml:"supply_hours"`
	DemandHours     float64   `json:"demand_hours" yaml:"demand_hours"`
}

// Store persists reports. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, &errors.ValidationError{Field: "history_db", Message: "path cannot be empty"}
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logging.Default()
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug().Err(err).Msg("Failed to set sqlite busy_timeout")
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug().Err(err).Msg("Failed to set sqlite journal_mode=WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("initialize", "history", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Save records a report. Saving the same run twice replaces it.
func (s *Store) Save(ctx context.Context, r *report.Report) error {
	if r == nil || r.Metadata.RunID == "" {
		return &errors.ValidationError{Field: "report", Message: "run id is required"}
	}
	data, err := r.Marshal(report.FormatJSON)
	if err != nil {
		return err
	}

	var grade string
	var score float64
	if r.Validation != nil {
		grade = string(r.Validation.Grade)
		score = r.Validation.WeightedScore
	}
	var accuracy float64
	if r.Mapping != nil {
		accuracy = r.Mapping.MappingAccuracy
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, generated_at, ruleset, grade, weighted_score, mapping_accuracy, degraded, supply_hours, demand_hours, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Metadata.RunID,
		r.Metadata.GeneratedAt.UTC().Format(time.RFC3339Nano),
		r.Metadata.Ruleset,
		grade,
		score,
		accuracy,
		r.Metadata.Degraded,
		r.Metadata.Supply.Hours,
		r.Metadata.Demand.Hours,
		string(data),
	)
	if err != nil {
		return errors.WrapResource("save", "run", r.Metadata.RunID, err)
	}

	logging.FromContext(ctx).Debug().Str("run_id", r.Metadata.RunID).Str("db", s.path).Msg("Recorded run")
	return nil
}

// List returns the most recent runs first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, generated_at, ruleset, grade, weighted_score, mapping_accuracy, degraded, supply_hours, demand_hours
		FROM runs ORDER BY generated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapResource("list", "run", "", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var generated string
		if err := rows.Scan(&e.ID, &generated, &e.Ruleset, &e.Grade, &e.WeightedScore,
			&e.MappingAccuracy, &e.Degraded, &e.SupplyHours, &e.DemandHours); err != nil {
			return nil, errors.WrapResource("scan", "run", "", err)
		}
		e.GeneratedAt, err = time.Parse(time.RFC3339Nano, generated)
		if err != nil {
			return nil, errors.WrapParse("time", s.path, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("list", "run", "", err)
	}
	return entries, nil
}

// Get returns the stored report for a run. A unique prefix of the run id is
// accepted.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	if id == "" {
		return nil, &errors.ValidationError{Field: "id", Message: "cannot be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT report FROM runs WHERE substr(id, 1, length(?)) = ? LIMIT 2`, id, id)
	if err != nil {
		return nil, errors.WrapResource("get", "run", id, err)
	}
	defer func() { _ = rows.Close() }()

	var found []string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.WrapResource("scan", "run", id, err)
		}
		found = append(found, data)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("get", "run", id, err)
	}

	switch len(found) {
	case 0:
		return nil, errors.NewNotFoundError("run", id)
	case 1:
		return report.Parse([]byte(found[0]), report.FormatJSON)
	default:
		return nil, &errors.ValidationError{Field: "id", Value: id, Message: "matches more than one run"}
	}
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.WrapResource("delete", "run", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapResource("delete", "run", id, err)
	}
	if n == 0 {
		return errors.NewNotFoundError("run", id)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil && !stderrors.Is(err, sql.ErrConnDone) {
		return errors.WrapIO("close", s.path, err)
	}
	return nil
}
