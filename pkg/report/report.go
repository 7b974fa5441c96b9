// Package report assembles the immutable document a reconciliation run
// produces and serializes it for downstream presentation.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/hierarchy"
	"github.com/agentstation/staffmap/pkg/ledger"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/validation"
)

// Format is a serialization format.
type Format string

const (
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
	// FormatYAML is YAML.
	FormatYAML Format = "yaml"
)

// Report is everything one run produced.
type Report struct {
	Metadata   Metadata                    `json:"metadata" yaml:"metadata"`
	Mapping    *mapping.Result             `json:"mapping" yaml:"mapping"`
	Levels     *hierarchy.Levels           `json:"levels" yaml:"levels"`
	CrossLevel *hierarchy.CrossLevelResult `json:"cross_level" yaml:"cross_level"`
	Validation *validation.Report          `json:"validation" yaml:"validation"`
}

// Metadata describes the run.
type Metadata struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	DurationMS  float64           `json:"duration_ms" yaml:"duration_ms"`
	Ruleset     string            `json:"ruleset" yaml:"ruleset"` // registry fingerprint
	RuleCount   int               `json:"rule_count" yaml:"rule_count"`
	Supply      LedgerSummary     `json:"supply" yaml:"supply"`
	Demand      LedgerSummary     `json:"demand" yaml:"demand"`
	RunContext  map[string]string `json:"run_context,omitempty" yaml:"run_context,omitempty"`
	Degraded    bool              `json:"degraded" yaml:"degraded"`
	Warnings    []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// LedgerSummary is the report view of an extracted ledger.
type LedgerSummary struct {
	Source    string            `json:"source" yaml:"source"`
	Missing   bool              `json:"missing" yaml:"missing"`
	Hours     float64           `json:"hours" yaml:"hours"`
	Records   int               `json:"records" yaml:"records"`
	Rows      int               `json:"rows" yaml:"rows"`
	Rejected  int               `json:"rejected" yaml:"rejected"`
	Entities  int               `json:"entities" yaml:"entities"`
	FirstDate string            `json:"first_date,omitempty" yaml:"first_date,omitempty"`
	LastDate  string            `json:"last_date,omitempty" yaml:"last_date,omitempty"`
	Aliases   map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Upstream  map[string]string `json:"upstream,omitempty" yaml:"upstream,omitempty"`
}

// Summarize converts a ledger into its report view.
func Summarize(l *ledger.Ledger) LedgerSummary {
	if l == nil {
		return LedgerSummary{Missing: true}
	}
	s := LedgerSummary{
		Source:   l.Source,
		Missing:  l.Missing,
		Hours:    l.Total(),
		Records:  l.Metadata.Records,
		Rows:     l.Metadata.Rows,
		Rejected: l.Metadata.Rejected,
		Entities: l.Metadata.Entities,
		Aliases:  l.Metadata.Aliases,
		Upstream: l.Metadata.Upstream,
	}
	if !l.Metadata.FirstDate.IsZero() {
		s.FirstDate = l.Metadata.FirstDate.Format(constants.DateLayout)
		s.LastDate = l.Metadata.LastDate.Format(constants.DateLayout)
	}
	return s
}

// Grade returns the validation grade, or C when validation did not run.
func (r *Report) Grade() validation.Grade {
	if r.Validation == nil {
		return validation.GradeC
	}
	return r.Validation.Grade
}

// Summary is a one-line description of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: grade %s", shortID(r.Metadata.RunID), r.Grade())
	if r.Validation != nil {
		fmt.Fprintf(&b, " (score %.2f, %d/%d checks passed)", r.Validation.WeightedScore,
			len(r.Validation.Order)-len(r.Validation.Failed()), len(r.Validation.Order))
	}
	if r.Levels != nil && r.Levels.Organization != nil {
		org := r.Levels.Organization
		fmt.Fprintf(&b, ", supply %.2fh, demand %.2fh, shortage %.2fh, excess %.2fh",
			org.TotalSupply, org.TotalDemand, org.TotalShortage, org.TotalExcess)
	}
	if r.Mapping != nil {
		fmt.Fprintf(&b, ", mapping accuracy %.2f", r.Mapping.MappingAccuracy)
	}
	if r.Metadata.Degraded {
		b.WriteString(", degraded")
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Marshal serializes the report.
func (r *Report) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, errors.WrapResource("marshal", "report", r.Metadata.RunID, err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return nil, errors.WrapResource("marshal", "report", r.Metadata.RunID, err)
		}
		return data, nil
	default:
		return nil, errors.NewValidationError("format", format, "must be json or yaml")
	}
}

// Write serializes the report to w.
func (r *Report) Write(w io.Writer, format Format) error {
	data, err := r.Marshal(format)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	return errors.WrapIO("write", "report", err)
}

// FormatForPath picks a format from a file extension; JSON is the default.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// WriteFile writes the report to path in the format its extension names.
func (r *Report) WriteFile(path string) error {
	data, err := r.Marshal(FormatForPath(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("create", dir, err)
		}
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// Parse decodes a report serialized by Marshal.
func Parse(data []byte, format Format) (*Report, error) {
	var r Report
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, errors.WrapParse(string(format), "", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, errors.WrapParse(string(format), "", err)
		}
	default:
		return nil, errors.NewValidationError("format", format, "must be json or yaml")
	}
	return &r, nil
}
