package ledger

import (
	"maps"
	"sort"
	"time"
)

// Ledger is the extracted, immutable view of one source.
type Ledger struct {
	Provenance Provenance                `json:"provenance" yaml:"provenance"`
	Source     string                    `json:"source" yaml:"source"`
	Records    map[string]CategoryRecord `json:"records" yaml:"records"`
	Partitions map[string]float64        `json:"partitions,omitempty" yaml:"partitions,omitempty"`
	Metadata   Metadata                  `json:"metadata" yaml:"metadata"`
	// Missing is set when the source was absent, unreadable or empty.
	Missing bool `json:"missing" yaml:"missing"`
}

// Metadata summarizes an extraction.
type Metadata struct {
	Records   int               `json:"records" yaml:"records"`
	Rows      int               `json:"rows" yaml:"rows"`
	Rejected  int               `json:"rejected" yaml:"rejected"`
	Entities  int               `json:"entities" yaml:"entities"`
	Labels    int               `json:"labels" yaml:"labels"`
	FirstDate time.Time         `json:"first_date,omitzero" yaml:"first_date,omitempty"`
	LastDate  time.Time         `json:"last_date,omitzero" yaml:"last_date,omitempty"`
	Aliases   map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"` // raw -> canonical
	Upstream  map[string]string `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	Warnings  []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Empty returns a missing ledger carrying a single warning.
func Empty(provenance Provenance, source, warning string) *Ledger {
	l := &Ledger{
		Provenance: provenance,
		Source:     source,
		Records:    map[string]CategoryRecord{},
		Partitions: map[string]float64{},
		Missing:    true,
	}
	if warning != "" {
		l.Metadata.Warnings = []string{warning}
	}
	return l
}

// Hours returns a fresh label to hours map.
func (l *Ledger) Hours() map[string]float64 {
	out := make(map[string]float64, len(l.Records))
	for label, rec := range l.Records {
		out[label] = rec.Hours
	}
	return out
}

// Total returns the sum of all label hours.
func (l *Ledger) Total() float64 {
	var total float64
	for _, label := range l.Labels() {
		total += l.Records[label].Hours
	}
	return total
}

// Labels returns the canonical labels in sorted order.
func (l *Ledger) Labels() []string {
	labels := make([]string, 0, len(l.Records))
	for label := range l.Records {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// PartitionHours returns a copy of the per-partition hours.
func (l *Ledger) PartitionHours() map[string]float64 {
	return maps.Clone(l.Partitions)
}

// Degraded reports whether callers should treat totals from this ledger as partial.
func (l *Ledger) Degraded() bool {
	return l == nil || l.Missing
}
