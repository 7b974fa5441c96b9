package table

import (
	"github.com/agentstation/staffmap/pkg/mapping"
)

// AllocationsToTableData converts the allocation trace to table format, one
// row per rule movement in the order the rules ran. The rule id is shown on
// the first row of each consecutive group only.
func AllocationsToTableData(allocations []mapping.Allocation) Data {
	headers := []string{"RULE", "STRATEGY", "SUPPLY", "DEMAND", "WEIGHT", "SUPPLY HOURS", "DEMAND HOURS", "CONFIDENCE"}

	rows := make([][]string, 0, len(allocations))
	for i, a := range allocations {
		ruleID, strategy := a.RuleID, string(a.Strategy)
		if i > 0 && allocations[i-1].RuleID == a.RuleID {
			ruleID, strategy = "", ""
		}
		rows = append(rows, []string{
			ruleID,
			strategy,
			a.Supply,
			a.Demand,
			FormatScore(a.Weight),
			FormatHours(a.SupplyHours),
			FormatHours(a.DemandHours),
			FormatScore(a.Confidence),
		})
	}

	return Data{
		Headers: headers,
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignDefault, AlignDefault, AlignDefault, AlignDefault, AlignRight, AlignRight, AlignRight, AlignRight,
		},
	}
}
