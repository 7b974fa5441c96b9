// Package table converts reconciliation results into table data for CLI output.
package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentstation/staffmap/internal/cmd/emoji"
	"github.com/agentstation/staffmap/internal/store"
	"github.com/agentstation/staffmap/pkg/hierarchy"
	"github.com/agentstation/staffmap/pkg/mapping"
	"github.com/agentstation/staffmap/pkg/report"
	"github.com/agentstation/staffmap/pkg/validation"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// LevelsToTableData summarizes every level in one row each.
func LevelsToTableData(levels *hierarchy.Levels) Data {
	headers := []string{"LEVEL", "SUPPLY", "DEMAND", "SHORTAGE", "EXCESS", "QUALITY", "INTEGRITY"}

	var rows [][]string
	if levels != nil {
		for _, lr := range levels.All() {
			if lr == nil {
				continue
			}
			name := string(lr.Level)
			if lr.Estimated {
				name += " (estimated)"
			}
			rows = append(rows, []string{
				name,
				FormatHours(lr.TotalSupply),
				FormatHours(lr.TotalDemand),
				FormatHours(lr.TotalShortage),
				FormatHours(lr.TotalExcess),
				FormatScore(lr.QualityScore),
				statusIcon(!lr.IntegrityFailed),
			})
		}
	}

	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignDefault, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignCenter},
	}
}

// BreakdownToTableData lists one level entry per row. Wide output adds the
// residue and contributor columns.
func BreakdownToTableData(lr *hierarchy.LevelResult, wide bool) Data {
	headers := []string{"KEY", "SUPPLY", "DEMAND", "SHORTAGE", "EXCESS"}
	if wide {
		headers = append(headers, "RESIDUE SUPPLY", "RESIDUE DEMAND", "CONTRIBUTORS")
	}

	var rows [][]string
	if lr != nil {
		for _, key := range lr.Keys() {
			b := lr.Breakdown[key]
			label := key
			switch {
			case b.SideChannel:
				label += " " + emoji.Warning + " side channel"
			case b.Estimated:
				label += " " + emoji.Warning + " estimated"
			}
			row := []string{
				label,
				FormatHours(b.Supply),
				FormatHours(b.Demand),
				FormatHours(b.Shortage),
				FormatHours(b.Excess),
			}
			if wide {
				row = append(row,
					FormatHours(b.ResidueSupply),
					FormatHours(b.ResidueDemand),
					joinOrDash(b.Contributors),
				)
			}
			rows = append(rows, row)
		}
	}

	return Data{Headers: headers, Rows: rows}
}

// ChecksToTableData lists validation checks in suite order.
func ChecksToTableData(v *validation.Report) Data {
	headers := []string{"CHECK", "SCORE", "THRESHOLD", "WEIGHT", "GAP", "PASSED"}

	var rows [][]string
	if v != nil {
		for _, name := range v.Order {
			c := v.Checks[name]
			gap := emoji.Optional
			if !c.Passed {
				gap = FormatScore(c.Gap)
			}
			rows = append(rows, []string{
				name,
				FormatScore(c.Score),
				FormatScore(c.Threshold),
				FormatScore(c.Weight),
				gap,
				statusIcon(c.Passed),
			})
		}
	}

	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignDefault, AlignRight, AlignRight, AlignRight, AlignRight, AlignCenter},
	}
}

// ResidueToTableData lists unmapped and side-channel hours per label.
func ResidueToTableData(res *mapping.Result) Data {
	headers := []string{"LEDGER", "LABEL", "HOURS", "KIND"}

	var rows [][]string
	if res != nil {
		add := func(ledger, kind string, hours map[string]float64) {
			for _, label := range sortedKeys(hours) {
				rows = append(rows, []string{ledger, label, FormatHours(hours[label]), kind})
			}
		}
		add("supply", "unmapped", res.UnmappedSupply)
		add("demand", "unmapped", res.UnmappedDemand)
		add("supply", "side channel", res.SideChannel.Supply)
		add("demand", "side channel", res.SideChannel.Demand)
	}

	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignDefault, AlignDefault, AlignRight, AlignDefault},
	}
}

// RulesToTableData lists rules in evaluation order.
func RulesToTableData(rules []mapping.Rule) Data {
	headers := []string{"ID", "PRIORITY", "STRATEGY", "SUPPLY", "DEMAND", "CONFIDENCE", "WHEN"}

	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{
			r.ID,
			fmt.Sprintf("%d", r.Priority),
			string(r.Strategy),
			joinOrDash(r.Supply),
			joinOrDash(r.Demand),
			FormatScore(r.Confidence),
			formatConditions(r.When),
		})
	}

	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignDefault, AlignRight, AlignDefault, AlignDefault, AlignDefault, AlignRight, AlignDefault},
	}
}

// HistoryToTableData lists stored runs.
func HistoryToTableData(entries []store.Entry) Data {
	headers := []string{"RUN", "GENERATED", "GRADE", "SCORE", "ACCURACY", "SUPPLY", "DEMAND", "DEGRADED"}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		degraded := ""
		if e.Degraded {
			degraded = emoji.Warning
		}
		rows = append(rows, []string{
			ShortID(e.ID),
			e.GeneratedAt.Local().Format("2006-01-02 15:04:05"),
			e.Grade,
			FormatScore(e.WeightedScore),
			FormatScore(e.MappingAccuracy),
			FormatHours(e.SupplyHours),
			FormatHours(e.DemandHours),
			degraded,
		})
	}

	return Data{
		Headers: headers,
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignDefault, AlignDefault, AlignCenter, AlignRight, AlignRight, AlignRight, AlignRight, AlignCenter,
		},
	}
}

// ReportSections returns the tables a report is rendered as, keyed by title,
// in display order.
func ReportSections(r *report.Report, wide bool) ([]string, map[string]Data) {
	titles := []string{"Levels", "Checks"}
	sections := map[string]Data{
		"Levels": LevelsToTableData(r.Levels),
		"Checks": ChecksToTableData(r.Validation),
	}
	if r.Levels != nil && r.Levels.Category != nil {
		titles = append(titles, "Categories")
		sections["Categories"] = BreakdownToTableData(r.Levels.Category, wide)
	}
	if residue := ResidueToTableData(r.Mapping); len(residue.Rows) > 0 {
		titles = append(titles, "Residue")
		sections["Residue"] = residue
	}
	if wide && r.Mapping != nil && len(r.Mapping.Allocations) > 0 {
		titles = append(titles, "Allocations")
		sections["Allocations"] = AllocationsToTableData(r.Mapping.Allocations)
	}
	return titles, sections
}

// FormatHours formats an hour amount.
func FormatHours(h float64) string {
	return fmt.Sprintf("%.2f", h)
}

// FormatScore formats a score in [0,1].
func FormatScore(s float64) string {
	return fmt.Sprintf("%.2f", s)
}

// ShortID shortens a run id for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusIcon(ok bool) string {
	if ok {
		return emoji.Success
	}
	return emoji.Error
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return emoji.Optional
	}
	return strings.Join(items, ", ")
}

func formatConditions(when map[string]string) string {
	if len(when) == 0 {
		return emoji.Optional
	}
	keys := make([]string, 0, len(when))
	for k := range when {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+when[k])
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
