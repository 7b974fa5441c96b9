package output

import (
	"io"

	"github.com/agentstation/staffmap/internal/cmd/table"
	"github.com/agentstation/staffmap/internal/store"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/report"
)

// FormatReport writes a report. Table formats render the level, check and
// residue tables followed by the recommendations; other formats serialize
// the whole report.
func FormatReport(w io.Writer, r *report.Report, format Format) error {
	if !format.IsTable() {
		return NewFormatter(format).Format(w, r)
	}

	order, tables := table.ReportSections(r, format == FormatWide)
	s := Sections{Title: r.Summary(), Order: order, Tables: tables}
	if r.Validation != nil && len(r.Validation.Recommendations) > 0 {
		s.Notes = append(s.Notes, "\nRecommendations:")
		for _, rec := range r.Validation.Recommendations {
			s.Notes = append(s.Notes, "  - "+rec)
		}
	}
	if len(r.Metadata.Warnings) > 0 {
		s.Notes = append(s.Notes, "\nWarnings:")
		for _, warning := range r.Metadata.Warnings {
			s.Notes = append(s.Notes, "  - "+warning)
		}
	}
	return NewFormatter(format).Format(w, s)
}

// FormatRules writes the rules of a registry.
func FormatRules(w io.Writer, rules []mapping.Rule, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.RulesToTableData(rules))
	}
	return NewFormatter(format).Format(w, mapping.File{Rules: rules})
}

// FormatHistory writes run history entries.
func FormatHistory(w io.Writer, entries []store.Entry, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.HistoryToTableData(entries))
	}
	return NewFormatter(format).Format(w, entries)
}

// FormatAny formats any data type for output.
func FormatAny(w io.Writer, data any, format Format) error {
	return NewFormatter(format).Format(w, data)
}
