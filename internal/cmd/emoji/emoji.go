// Package emoji provides symbol constants for CLI output.
package emoji

// Status symbols shared by the report tables.
const (
	// Success marks a passing check or a level whose totals add up.
	Success = "✓"

	// Error marks a failing check or a level with integrity violations.
	Error = "✗"

	// Warning marks degraded runs and estimated figures.
	Warning = "!"

	// Optional marks values that do not apply, such as an empty gap.
	Optional = "-"
)
