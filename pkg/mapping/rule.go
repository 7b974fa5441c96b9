package mapping

import (
	"fmt"
	"math"
	"slices"

	"github.com/agentstation/staffmap/internal/matcher"
	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
)

// Rule is a curated correspondence between supply and demand labels.
//
// Matrix has one row per Supply entry and one column per Demand entry. A
// label entry may be a literal, a glob or a "re:" regular expression; the
// row or column applies to every present label the pattern expands to.
type Rule struct {
	ID         string            `json:"id" yaml:"id" toml:"id"`
	Supply     []string          `json:"supply,omitempty" yaml:"supply,omitempty" toml:"supply,omitempty"`
	Demand     []string          `json:"demand,omitempty" yaml:"demand,omitempty" toml:"demand,omitempty"`
	Strategy   Strategy          `json:"strategy" yaml:"strategy" toml:"strategy"`
	Matrix     [][]float64       `json:"matrix,omitempty" yaml:"matrix,omitempty" toml:"matrix,omitempty"`
	Confidence float64           `json:"confidence" yaml:"confidence" toml:"confidence"`
	Priority   int               `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`
	Rationale  string            `json:"rationale,omitempty" yaml:"rationale,omitempty" toml:"rationale,omitempty"`
	When       map[string]string `json:"when,omitempty" yaml:"when,omitempty" toml:"when,omitempty"`
}

// Weight returns the allocation weight between supply entry i and demand entry j.
func (r Rule) Weight(i, j int) float64 {
	if i < 0 || i >= len(r.Matrix) || j < 0 || j >= len(r.Matrix[i]) {
		return 0
	}
	return r.Matrix[i][j]
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	out.Supply = slices.Clone(r.Supply)
	out.Demand = slices.Clone(r.Demand)
	if r.Matrix != nil {
		out.Matrix = make([][]float64, len(r.Matrix))
		for i, row := range r.Matrix {
			out.Matrix[i] = slices.Clone(row)
		}
	}
	if r.When != nil {
		out.When = make(map[string]string, len(r.When))
		for k, v := range r.When {
			out.When[k] = v
		}
	}
	return out
}

// compiledRule is a validated rule with its label matchers.
type compiledRule struct {
	Rule
	supply *matcher.Set
	demand *matcher.Set
}

// compile validates a rule and applies defaults. index is the rule's
// position in its source and only appears in error messages.
func compile(rule Rule, index int) (*compiledRule, error) {
	r := rule.Clone()
	fail := func(field, format string, args ...any) error {
		return errors.NewRuleError(r.ID, index, field, fmt.Sprintf(format, args...))
	}

	strategy, err := ParseStrategy(string(r.Strategy))
	if err != nil {
		return nil, fail("strategy", "unknown strategy %q", r.Strategy)
	}
	r.Strategy = strategy

	if r.ID == "" {
		r.ID = fmt.Sprintf("rule-%d", index+1)
	}

	r.Supply, err = canonicalLabels(r.Supply)
	if err != nil {
		return nil, fail("supply", "%v", err)
	}
	r.Demand, err = canonicalLabels(r.Demand)
	if err != nil {
		return nil, fail("demand", "%v", err)
	}

	if r.Confidence < 0 || r.Confidence > 1 || math.IsNaN(r.Confidence) {
		return nil, fail("confidence", "%v outside [0,1]", r.Confidence)
	}
	if len(r.When) > 0 && r.Strategy != Contextual {
		return nil, fail("when", "conditions are only valid on CONTEXTUAL rules")
	}

	switch r.Strategy {
	case Special:
		if len(r.Supply)+len(r.Demand) == 0 {
			return nil, fail("labels", "SPECIAL rule names no labels")
		}
		if len(r.Matrix) > 0 {
			return nil, fail("matrix", "SPECIAL rules take no allocation matrix")
		}
	case Exact:
		if len(r.Supply) != 1 || len(r.Demand) != 1 {
			return nil, fail("labels", "EXACT needs exactly one supply and one demand label, got %d and %d",
				len(r.Supply), len(r.Demand))
		}
		if r.Matrix == nil {
			r.Matrix = [][]float64{{1}}
		}
		if r.Confidence == 0 {
			r.Confidence = 1
		}
		if err := checkShape(r); err != nil {
			return nil, fail("matrix", "%v", err)
		}
		if r.Matrix[0][0] != 1 {
			return nil, fail("matrix", "EXACT matrix must be [[1]], got [[%v]]", r.Matrix[0][0])
		}
	case Composite, Contextual:
		if len(r.Supply) != 1 || len(r.Demand) == 0 {
			return nil, fail("labels", "%s needs one supply label and at least one demand label", r.Strategy)
		}
		if r.Strategy == Contextual && len(r.When) == 0 {
			return nil, fail("when", "CONTEXTUAL rule has no conditions")
		}
		if err := checkShape(r); err != nil {
			return nil, fail("matrix", "%v", err)
		}
		var sum float64
		for _, w := range r.Matrix[0] {
			sum += w
		}
		if sum > 1+constants.WeightSumEpsilon {
			return nil, fail("matrix", "weights sum to %v, must not exceed 1", sum)
		}
	case Semantic:
		if len(r.Supply) == 0 || len(r.Demand) != 1 {
			return nil, fail("labels", "SEMANTIC needs at least one supply label and exactly one demand label")
		}
		if err := checkShape(r); err != nil {
			return nil, fail("matrix", "%v", err)
		}
		for i, row := range r.Matrix {
			if row[0] == 0 {
				return nil, fail("matrix", "row %d: equivalence weight must be in (0,1]", i)
			}
		}
	}

	supply, err := matcher.NewSet(r.Supply)
	if err != nil {
		return nil, fail("supply", "%v", err)
	}
	demand, err := matcher.NewSet(r.Demand)
	if err != nil {
		return nil, fail("demand", "%v", err)
	}

	return &compiledRule{Rule: r, supply: supply, demand: demand}, nil
}

// checkShape verifies the matrix is len(Supply) x len(Demand) with weights in [0,1].
func checkShape(r Rule) error {
	if len(r.Matrix) != len(r.Supply) {
		return fmt.Errorf("expected %d rows, got %d", len(r.Supply), len(r.Matrix))
	}
	for i, row := range r.Matrix {
		if len(row) != len(r.Demand) {
			return fmt.Errorf("row %d: expected %d columns, got %d", i, len(r.Demand), len(row))
		}
		for j, w := range row {
			if w < 0 || w > 1 || math.IsNaN(w) {
				return fmt.Errorf("weight [%d][%d] = %v outside [0,1]", i, j, w)
			}
		}
	}
	return nil
}

// canonicalLabels normalizes literal labels and rejects empty entries.
// Patterns are kept verbatim.
func canonicalLabels(labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	for i, label := range labels {
		if !matcher.IsPattern(label) {
			label = ledger.NormalizeLabel(label)
		}
		if label == "" {
			return nil, fmt.Errorf("label %d is empty", i)
		}
		out = append(out, label)
	}
	return out, nil
}
