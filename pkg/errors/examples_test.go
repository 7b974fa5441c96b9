package errors_test

import (
	"fmt"

	"github.com/agentstation/staffmap/pkg/errors"
)

// Example demonstrates separating fatal rule errors from degraded sources.
func Example() {
	ruleErr := errors.NewRuleError("aux-semantic", 2, "matrix", "expected 2 rows, got 1")
	missing := errors.NewMissingSourceError("demand", "grid.yaml", nil)

	for _, err := range []error{ruleErr, missing} {
		switch {
		case errors.IsConfigError(err):
			fmt.Println("fatal:", err)
		case errors.IsMissingSource(err):
			fmt.Println("degraded:", err)
		}
	}

	// Output:
	// fatal: mapping rule aux-semantic: matrix: expected 2 rows, got 1
	// degraded: demand ledger grid.yaml is empty
}
