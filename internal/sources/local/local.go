// Package local reads a ledger from a YAML or JSON file.
//
// A ledger file carries pre-aggregated hours, raw rows, or both:
//
//	name: night roster
//	slot_minutes: 30
//	metadata:
//	  shift: night
//	hours:
//	  Charge Nurse: 12
//	rows:
//	  - label: RN
//	    partition: north
//	    entity: emp-17
//	    date: 2026-03-01
//	    slots: 16
package local

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
)

// Document is the on-disk ledger layout.
type Document struct {
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Provenance  ledger.Provenance  `json:"provenance,omitempty" yaml:"provenance,omitempty"`
	SlotMinutes float64            `json:"slot_minutes,omitempty" yaml:"slot_minutes,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Hours       map[string]float64 `json:"hours,omitempty" yaml:"hours,omitempty"`
	Rows        []ledger.Row       `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Source loads a ledger from a file path.
type Source struct {
	path       string
	provenance ledger.Provenance
	name       string

	mu       sync.Mutex
	metadata map[string]string
}

var _ ledger.Source = (*Source)(nil)

// New creates a new local source.
func New(provenance ledger.Provenance, opts ...Option) *Source {
	s := &Source{provenance: provenance}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a local source.
type Option func(*Source)

// WithPath sets the ledger file path.
func WithPath(path string) Option {
	return func(s *Source) {
		s.path = path
	}
}

// WithName overrides the name reported in warnings and report metadata.
func WithName(name string) Option {
	return func(s *Source) {
		s.name = name
	}
}

// Name implements ledger.Source.
func (s *Source) Name() string {
	if s.name != "" {
		return s.name
	}
	if s.path != "" {
		return filepath.Base(s.path)
	}
	return string(s.provenance)
}

// Provenance implements ledger.Source.
func (s *Source) Provenance() ledger.Provenance {
	return s.provenance
}

// Metadata implements ledger.Source. It is populated by Rows.
func (s *Source) Metadata() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.metadata)
}

// Rows implements ledger.Source. Pre-aggregated hours come first, in label
// order, followed by the file rows.
func (s *Source) Rows(ctx context.Context) ([]ledger.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, &errors.ValidationError{Field: "path", Message: "ledger file path is not set"}
	}

	doc, err := Load(s.path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.metadata = maps.Clone(doc.Metadata)
	if s.name == "" && doc.Name != "" {
		s.name = doc.Name
	}
	s.mu.Unlock()

	return doc.Flatten(), nil
}

// Load reads and decodes a ledger file. Unknown fields are rejected.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParse(format(path), path, err)
	}
	return doc, nil
}

// Parse decodes a ledger document. JSON is accepted as YAML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	if doc.Provenance != "" && !doc.Provenance.IsValid() {
		return nil, &errors.ValidationError{Field: "provenance", Value: doc.Provenance, Message: "must be supply or demand"}
	}
	return &doc, nil
}

// Flatten returns the document as ledger rows. The document slot duration
// applies to rows that do not carry their own.
func (d *Document) Flatten() []ledger.Row {
	labels := make([]string, 0, len(d.Hours))
	for label := range d.Hours {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := make([]ledger.Row, 0, len(labels)+len(d.Rows))
	for _, label := range labels {
		rows = append(rows, ledger.Row{Label: label, Hours: d.Hours[label]})
	}
	for _, row := range d.Rows {
		if row.SlotMinutes <= 0 {
			row.SlotMinutes = d.SlotMinutes
		}
		rows = append(rows, row)
	}
	return rows
}

func format(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "yaml"
}
