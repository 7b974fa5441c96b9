// Package reconcile implements the reconcile command.
package reconcile

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/staffmap"
	"github.com/agentstation/staffmap/cmd/application"
	"github.com/agentstation/staffmap/internal/cmd/output"
	"github.com/agentstation/staffmap/internal/sources/local"
	"github.com/agentstation/staffmap/internal/sources/sqlsource"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
)

// Flags holds the reconcile command flags.
type Flags struct {
	Rules       string
	Supply      string
	Demand      string
	DB          string
	SupplyTable string
	DemandTable string
	Context     map[string]string
	Out         string
	NoHistory   bool
	Strict      bool
}

// NewCommand creates the reconcile command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "core",
		Short:   "Reconcile a supply ledger against a demand ledger",
		Long: `Reconcile aligns the labels of a supply ledger (hours staffed) with the
labels of a demand ledger (hours of coverage required) using the mapping rules,
aggregates the result at organization, category and sub-partition level, and
grades it.

Ledgers are read from YAML or JSON files, or from tables of a SQLite database.
A missing or empty ledger does not fail the run: the report is marked degraded.`,
		Example: `  staffmap reconcile --rules rules.yaml --supply roster.yaml --demand census.yaml
  staffmap reconcile --db ward.db --supply-table shifts --demand-table census -o json
  staffmap reconcile --supply roster.yaml --demand census.yaml --context shift=night --out report.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Rules, "rules", "", "mapping rule file (yaml, json or toml); overrides the configured rules")
	cmd.Flags().StringVar(&flags.Supply, "supply", "", "supply ledger file")
	cmd.Flags().StringVar(&flags.Demand, "demand", "", "demand ledger file")
	cmd.Flags().StringVar(&flags.DB, "db", "", "SQLite database holding the ledger tables")
	cmd.Flags().StringVar(&flags.SupplyTable, "supply-table", "", "supply ledger table in --db")
	cmd.Flags().StringVar(&flags.DemandTable, "demand-table", "", "demand ledger table in --db")
	cmd.Flags().StringToStringVar(&flags.Context, "context", nil, "run context for contextual rules (key=value)")
	cmd.Flags().StringVar(&flags.Out, "out", "", "also write the full report to this file (.json, .yaml)")
	cmd.Flags().BoolVar(&flags.NoHistory, "no-history", false, "do not record the run in history")
	cmd.Flags().BoolVar(&flags.Strict, "strict", false, "exit with an error unless the run is production ready")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, flags *Flags) error {
	ctx := cmd.Context()
	logger := app.Logger()

	var db *sql.DB
	if flags.DB != "" {
		var err error
		db, err = sqlsource.Open(flags.DB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
	}

	supply, err := source(ledger.Supply, flags.Supply, db, flags.SupplyTable)
	if err != nil {
		return err
	}
	demand, err := source(ledger.Demand, flags.Demand, db, flags.DemandTable)
	if err != nil {
		return err
	}

	var opts []staffmap.Option
	if flags.Rules != "" {
		opts = append(opts, staffmap.WithRulesFile(flags.Rules))
	}
	if len(flags.Context) > 0 {
		opts = append(opts, staffmap.WithRunContext(flags.Context))
	}
	if !flags.NoHistory {
		history, err := app.History()
		if err != nil {
			return err
		}
		if history != nil {
			opts = append(opts, staffmap.WithRecorder(history))
		}
	}

	engine, err := app.Engine(opts...)
	if err != nil {
		return err
	}

	r, err := engine.Reconcile(ctx, supply, demand)
	if err != nil {
		return err
	}

	if flags.Out != "" {
		if err := r.WriteFile(flags.Out); err != nil {
			return err
		}
		logger.Info().Str("path", flags.Out).Msg("Report written")
	}

	format, err := output.ParseFormat(app.OutputFormat())
	if err != nil {
		return err
	}
	if err := output.FormatReport(cmd.OutOrStdout(), r, output.DetectFormat(string(format))); err != nil {
		return err
	}

	if flags.Strict && !r.Validation.ProductionReady {
		return fmt.Errorf("run %s graded %s: not production ready", r.Metadata.RunID, r.Grade())
	}
	return nil
}

// source picks the ledger source for one side. Neither a file nor a table
// yields a nil source, which reconciles as a missing ledger.
func source(provenance ledger.Provenance, path string, db *sql.DB, table string) (ledger.Source, error) {
	switch {
	case path != "" && table != "":
		return nil, &errors.ValidationError{
			Field:   string(provenance),
			Message: "set either a ledger file or a table, not both",
		}
	case table != "":
		if db == nil {
			return nil, &errors.ValidationError{Field: string(provenance) + "-table", Message: "requires --db"}
		}
		return sqlsource.New(db, provenance, table)
	case path != "":
		return local.New(provenance, local.WithPath(path)), nil
	default:
		return nil, nil
	}
}
