// Package sqlsource reads a ledger from a SQL table.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	// Pure Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
)

// identifier guards table and column names, which cannot be bound as
// query parameters.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dateLayouts are tried in order for text date columns.
var dateLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// Columns names the table columns that feed ledger rows. Only Label is
// required; an empty name means the column is absent.
type Columns struct {
	Label       string `json:"label" yaml:"label" mapstructure:"label"`
	Partition   string `json:"partition,omitempty" yaml:"partition,omitempty" mapstructure:"partition"`
	Entity      string `json:"entity,omitempty" yaml:"entity,omitempty" mapstructure:"entity"`
	Date        string `json:"date,omitempty" yaml:"date,omitempty" mapstructure:"date"`
	Slots       string `json:"slots,omitempty" yaml:"slots,omitempty" mapstructure:"slots"`
	SlotMinutes string `json:"slot_minutes,omitempty" yaml:"slot_minutes,omitempty" mapstructure:"slot_minutes"`
	Hours       string `json:"hours,omitempty" yaml:"hours,omitempty" mapstructure:"hours"`
}

// DefaultColumns uses the ledger field names as column names.
func DefaultColumns() Columns {
	return Columns{
		Label:       "label",
		Partition:   "partition",
		Entity:      "entity",
		Date:        "date",
		Slots:       "slots",
		SlotMinutes: "slot_minutes",
		Hours:       "hours",
	}
}

// Source reads ledger rows with a single SELECT.
type Source struct {
	db         *sql.DB
	table      string
	columns    Columns
	provenance ledger.Provenance
	name       string
	metadata   map[string]string
}

var _ ledger.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithColumns overrides the column mapping.
func WithColumns(columns Columns) Option {
	return func(s *Source) {
		s.columns = columns
	}
}

// WithName overrides the name reported in warnings and report metadata.
func WithName(name string) Option {
	return func(s *Source) {
		s.name = name
	}
}

// WithMetadata attaches upstream metadata to the ledger.
func WithMetadata(metadata map[string]string) Option {
	return func(s *Source) {
		s.metadata = maps.Clone(metadata)
	}
}

// New creates a Source over table. Identifiers are validated here so a bad
// mapping fails before any query runs.
func New(db *sql.DB, provenance ledger.Provenance, table string, opts ...Option) (*Source, error) {
	if db == nil {
		return nil, &errors.ValidationError{Field: "db", Message: "cannot be nil"}
	}
	s := &Source{db: db, table: table, columns: DefaultColumns(), provenance: provenance}
	for _, opt := range opts {
		opt(s)
	}

	if !identifier.MatchString(s.table) {
		return nil, &errors.ValidationError{Field: "table", Value: s.table, Message: "is not a valid identifier"}
	}
	if s.columns.Label == "" {
		return nil, &errors.ValidationError{Field: "columns.label", Message: "is required"}
	}
	for field, column := range s.columns.named() {
		if column != "" && !identifier.MatchString(column) {
			return nil, &errors.ValidationError{Field: "columns." + field, Value: column, Message: "is not a valid identifier"}
		}
	}
	return s, nil
}

// Open opens a SQLite database file for use with New.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO("open", path, err)
	}
	return db, nil
}

func (c Columns) named() map[string]string {
	return map[string]string{
		"label":        c.Label,
		"partition":    c.Partition,
		"entity":       c.Entity,
		"date":         c.Date,
		"slots":        c.Slots,
		"slot_minutes": c.SlotMinutes,
		"hours":        c.Hours,
	}
}

// Name implements ledger.Source.
func (s *Source) Name() string {
	if s.name != "" {
		return s.name
	}
	return s.table
}

// Provenance implements ledger.Source.
func (s *Source) Provenance() ledger.Provenance { return s.provenance }

// Metadata implements ledger.Source.
func (s *Source) Metadata() map[string]string { return maps.Clone(s.metadata) }

// Query returns the SELECT statement Rows runs.
func (s *Source) Query() string {
	cols := append([]string{s.columns.Label}, s.optional()...)
	for i, c := range cols {
		cols[i] = quote(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quote(s.table))
}

// quote quotes a validated identifier so keywords such as partition work as
// column names.
func quote(name string) string {
	return `"` + name + `"`
}

// optional returns the configured optional columns in a fixed order.
func (s *Source) optional() []string {
	var out []string
	for _, c := range []string{s.columns.Partition, s.columns.Entity, s.columns.Date, s.columns.Slots, s.columns.SlotMinutes, s.columns.Hours} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Rows implements ledger.Source.
func (s *Source) Rows(ctx context.Context) ([]ledger.Row, error) {
	rows, err := s.db.QueryContext(ctx, s.Query())
	if err != nil {
		return nil, errors.WrapResource("query", "ledger", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []ledger.Row
	for rows.Next() {
		var (
			label                     sql.NullString
			partition, entity, date   sql.NullString
			slots, slotMinutes, hours sql.NullFloat64
		)
		dest := []any{&label}
		if s.columns.Partition != "" {
			dest = append(dest, &partition)
		}
		if s.columns.Entity != "" {
			dest = append(dest, &entity)
		}
		if s.columns.Date != "" {
			dest = append(dest, &date)
		}
		if s.columns.Slots != "" {
			dest = append(dest, &slots)
		}
		if s.columns.SlotMinutes != "" {
			dest = append(dest, &slotMinutes)
		}
		if s.columns.Hours != "" {
			dest = append(dest, &hours)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.WrapResource("scan", "ledger", s.table, err)
		}

		row := ledger.Row{
			Label:       label.String,
			Partition:   partition.String,
			Entity:      entity.String,
			Slots:       slots.Float64,
			SlotMinutes: slotMinutes.Float64,
			Hours:       hours.Float64,
		}
		if date.Valid && date.String != "" {
			row.Date, err = parseDate(date.String)
			if err != nil {
				return nil, errors.WrapParse("date", s.table, err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("query", "ledger", s.table, err)
	}
	return out, nil
}

func parseDate(v string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
