package ledger

import (
	"context"
	"maps"
	"sort"
	"time"
)

// Row is one source line. Supply rows carry a staffed slot count, demand rows
// carry required coverage across a time grid, and pre-aggregated rows carry
// Hours directly.
type Row struct {
	Label       string    `json:"label" yaml:"label"`
	Partition   string    `json:"partition,omitempty" yaml:"partition,omitempty"`
	Entity      string    `json:"entity,omitempty" yaml:"entity,omitempty"`
	Date        time.Time `json:"date,omitzero" yaml:"date,omitempty"`
	Slots       float64   `json:"slots,omitempty" yaml:"slots,omitempty"`
	Coverage    []float64 `json:"coverage,omitempty" yaml:"coverage,omitempty"`
	SlotMinutes float64   `json:"slot_minutes,omitempty" yaml:"slot_minutes,omitempty"`
	Hours       float64   `json:"hours,omitempty" yaml:"hours,omitempty"`
}

// Contribution returns the hours this row adds to its label.
// defaultSlotMinutes applies when the row does not name its own slot duration.
func (r Row) Contribution(defaultSlotMinutes float64) float64 {
	slot := r.SlotMinutes
	if slot <= 0 {
		slot = defaultSlotMinutes
	}

	switch {
	case len(r.Coverage) > 0:
		var sum float64
		for _, c := range r.Coverage {
			sum += c
		}
		return sum * slot / 60
	case r.Slots != 0:
		return r.Slots * slot / 60
	default:
		return r.Hours
	}
}

// Source yields the rows of one ledger.
type Source interface {
	// Name identifies the source in warnings and report metadata.
	Name() string
	// Provenance reports which ledger the source feeds.
	Provenance() Provenance
	// Rows reads every row. An empty result means the ledger is missing.
	Rows(ctx context.Context) ([]Row, error)
	// Metadata returns upstream metadata, such as fields produced by
	// discovery tooling or the run context a contextual rule keys on.
	Metadata() map[string]string
}

// MapSource adapts a pre-aggregated label to hours map.
type MapSource struct {
	name       string
	provenance Provenance
	hours      map[string]float64
	metadata   map[string]string
}

var _ Source = (*MapSource)(nil)

// NewMapSource creates a source over a label to hours map.
func NewMapSource(name string, provenance Provenance, hours map[string]float64, metadata map[string]string) *MapSource {
	return &MapSource{
		name:       name,
		provenance: provenance,
		hours:      maps.Clone(hours),
		metadata:   maps.Clone(metadata),
	}
}

// Name implements Source.
func (s *MapSource) Name() string { return s.name }

// Provenance implements Source.
func (s *MapSource) Provenance() Provenance { return s.provenance }

// Metadata implements Source.
func (s *MapSource) Metadata() map[string]string { return maps.Clone(s.metadata) }

// Rows implements Source. Rows are returned in label order.
func (s *MapSource) Rows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(s.hours))
	for label := range s.hours {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := make([]Row, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, Row{Label: label, Hours: s.hours[label]})
	}
	return rows, nil
}

// RowSource serves rows held in memory.
type RowSource struct {
	name       string
	provenance Provenance
	rows       []Row
	metadata   map[string]string
}

var _ Source = (*RowSource)(nil)

// NewRowSource creates a source over in-memory rows.
func NewRowSource(name string, provenance Provenance, rows []Row, metadata map[string]string) *RowSource {
	return &RowSource{
		name:       name,
		provenance: provenance,
		rows:       append([]Row(nil), rows...),
		metadata:   maps.Clone(metadata),
	}
}

// Name implements Source.
func (s *RowSource) Name() string { return s.name }

// Provenance implements Source.
func (s *RowSource) Provenance() Provenance { return s.provenance }

// Metadata implements Source.
func (s *RowSource) Metadata() map[string]string { return maps.Clone(s.metadata) }

// Rows implements Source.
func (s *RowSource) Rows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Row(nil), s.rows...), nil
}
