// Package constants provides shared constants for CLI commands.
package constants

// Output format names accepted by --format.
const (
	// FormatTable is the default table output format.
	FormatTable = "table"

	// FormatWide adds residue, contributor and allocation columns.
	FormatWide = "wide"

	// FormatJSON outputs data as JSON.
	FormatJSON = "json"

	// FormatYAML outputs data as YAML.
	FormatYAML = "yaml"
)

// Formats lists every accepted format name.
var Formats = []string{FormatTable, FormatWide, FormatJSON, FormatYAML}
