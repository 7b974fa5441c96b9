// Package constants provides shared constants used throughout the staffmap codebase.
// This includes numeric tolerances, scoring penalties, default check thresholds,
// file permissions, and other values that should be consistent across the application.
package constants

import "time"

// Tolerance constants define the numeric slack used when comparing totals
const (
	// DefaultEpsilon is the tolerance, in hours, for totals that should match exactly
	DefaultEpsilon = 0.01

	// ConservationEpsilon is the tolerance used when checking that mapped and
	// unmapped hours reproduce the raw input totals
	ConservationEpsilon = 1e-6

	// WeightSumEpsilon is the slack allowed when check weights or allocation rows must sum to a bound
	WeightSumEpsilon = 1e-9
)

// Penalty constants define how much a detected inconsistency lowers a score
const (
	// DefaultViolationPenalty is subtracted from a level quality score per violation
	DefaultViolationPenalty = 0.1

	// DefaultSupplyMismatchPenalty applies when supply totals disagree across levels
	DefaultSupplyMismatchPenalty = 0.2

	// DefaultDemandMismatchPenalty applies when category demand disagrees with the organization
	DefaultDemandMismatchPenalty = 0.15

	// DefaultEstimatedDemandPenalty applies when estimated sub-partition demand disagrees.
	// Lighter than the measured penalties because the compared value is an estimate.
	DefaultEstimatedDemandPenalty = 0.1
)

// Ledger extraction constants
const (
	// DefaultSlotMinutes is the slot duration used when a row does not declare one
	DefaultSlotMinutes = 30

	// UnassignedPartition is the sub-partition key for rows without a partition
	UnassignedPartition = "unassigned"

	// DateLayout is the layout used for ledger dates in files and tables
	DateLayout = "2006-01-02"

	// DeclaredTotalKey is the upstream metadata key a source uses to state its
	// own total hours, checked against the sum of its labels
	DeclaredTotalKey = "declared_total_hours"
)

// Validation constants
const (
	// DefaultPerformanceBudget is the run duration under which performance scores 1.0
	DefaultPerformanceBudget = 5 * time.Second

	// MinSuggestionScore is the minimum similarity for a label suggestion to be reported
	MinSuggestionScore = 0.34

	// MaxSuggestions is the maximum number of suggestions reported per unknown label
	MaxSuggestions = 3
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Timeout constants
const (
	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// ShutdownTimeout bounds graceful shutdown after a failed command
	ShutdownTimeout = 5 * time.Second

	// StoreBusyTimeout is the SQLite busy timeout, in milliseconds, for the history store
	StoreBusyTimeout = 5000
)

// Path constants
const (
	// DefaultConfigName is the config file name searched in $HOME and the working directory
	DefaultConfigName = ".staffmap"

	// DefaultHistoryPath is the default SQLite file for run history
	DefaultHistoryPath = "~/.staffmap/history.db"

	// EnvPrefix is the environment variable prefix read by the CLI
	EnvPrefix = "STAFFMAP"
)

// Format constants
const (
	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"

	// TimeFormatFilename is the format used in generated filenames
	TimeFormatFilename = "20060102-150405"
)
