package mapping

import (
	"strings"

	"github.com/agentstation/staffmap/pkg/errors"
)

// Strategy is how a rule aligns supply labels with demand labels.
type Strategy string

const (
	// Exact is a 1:1 correspondence between one supply and one demand label.
	Exact Strategy = "EXACT"
	// Semantic merges several supply labels into one demand label, each at
	// its own partial-equivalence weight.
	Semantic Strategy = "SEMANTIC"
	// Composite distributes one supply label across several demand labels.
	Composite Strategy = "COMPOSITE"
	// Contextual is a composite distribution that only applies when its
	// conditions match the run context.
	Contextual Strategy = "CONTEXTUAL"
	// Special moves labels out of reconciliation into the side channel.
	Special Strategy = "SPECIAL"
)

// Strategies lists every strategy in documentation order.
var Strategies = []Strategy{Exact, Semantic, Composite, Contextual, Special}

// String returns the string representation of a strategy.
func (s Strategy) String() string {
	return string(s)
}

// Name returns a title-cased name for display.
func (s Strategy) Name() string {
	str := strings.ToLower(s.String())
	if str == "" {
		return ""
	}
	return strings.ToUpper(str[:1]) + str[1:]
}

// IsValid reports whether s is a known strategy.
func (s Strategy) IsValid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// Distributes reports whether the strategy allocates hours pairwise at equal
// value on both sides.
func (s Strategy) Distributes() bool {
	return s == Exact || s == Composite || s == Contextual
}

// ParseStrategy parses a strategy name, ignoring case and surrounding space.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToUpper(strings.TrimSpace(name)))
	if !s.IsValid() {
		return "", &errors.ValidationError{
			Field:   "strategy",
			Value:   name,
			Message: "must be one of EXACT, SEMANTIC, COMPOSITE, CONTEXTUAL, SPECIAL",
		}
	}
	return s, nil
}
