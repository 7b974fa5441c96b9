// Package ledger extracts supply and demand category ledgers into label to
// hours maps. A ledger source yields rows keyed by category label; the
// extractor sums each label's hour contributions, canonicalizes labels and
// derives the metadata later stages use to judge how complete a run was.
//
// Extraction never fails on data. A source that is absent, unreadable or
// empty produces an empty ledger flagged Missing, which callers treat as a
// degraded analysis.
package ledger

import "time"

// Provenance identifies which ledger a record came from.
type Provenance string

const (
	// Supply is the ledger of hours actually staffed.
	Supply Provenance = "supply"
	// Demand is the ledger of hours of coverage required.
	Demand Provenance = "demand"
)

// String returns the string representation of a provenance.
func (p Provenance) String() string {
	return string(p)
}

// IsValid reports whether p is a known provenance.
func (p Provenance) IsValid() bool {
	return p == Supply || p == Demand
}

// CategoryRecord is the extracted hour total for one label of one ledger.
// Hours is never negative.
type CategoryRecord struct {
	Label      string         `json:"label" yaml:"label"`
	Hours      float64        `json:"hours" yaml:"hours"`
	Provenance Provenance     `json:"provenance" yaml:"provenance"`
	Metadata   RecordMetadata `json:"metadata" yaml:"metadata"`
}

// RecordMetadata describes the rows folded into a CategoryRecord.
type RecordMetadata struct {
	Rows      int       `json:"rows" yaml:"rows"`
	Entities  int       `json:"entities" yaml:"entities"`
	FirstDate time.Time `json:"first_date,omitzero" yaml:"first_date,omitempty"`
	LastDate  time.Time `json:"last_date,omitzero" yaml:"last_date,omitempty"`
	Aliases   []string  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}
