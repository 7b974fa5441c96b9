// Package history implements the history command group.
package history

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/staffmap/cmd/application"
	"github.com/agentstation/staffmap/internal/cmd/emoji"
	"github.com/agentstation/staffmap/internal/cmd/output"
	"github.com/agentstation/staffmap/pkg/errors"
)

// NewCommand creates the history command group.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		GroupID: "management",
		Short:   "Browse recorded reconciliation runs",
		Long: `History reads the runs recorded in the history database
(history_db in the config file or STAFFMAP_HISTORY_DB).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(NewListCommand(app))
	cmd.AddCommand(NewShowCommand(app))
	cmd.AddCommand(NewDeleteCommand(app))
	return cmd
}

// NewListCommand creates the history list subcommand.
func NewListCommand(app application.Application) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded runs, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := open(app)
			if err != nil {
				return err
			}
			entries, err := history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			app.Logger().Debug().Int("runs", len(entries)).Msg("Listed run history")
			return output.FormatHistory(cmd.OutOrStdout(), entries, output.DetectFormat(string(format)))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	return cmd
}

// NewShowCommand creates the history show subcommand.
func NewShowCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded report",
		Long:  `Show prints a recorded report. A unique prefix of the run id is enough.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := open(app)
			if err != nil {
				return err
			}
			r, err := history.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			return output.FormatReport(cmd.OutOrStdout(), r, output.DetectFormat(string(format)))
		},
	}
}

// NewDeleteCommand creates the history delete subcommand.
func NewDeleteCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <run-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a recorded run",
		Long:    `Delete removes a recorded run. A unique prefix of the run id is enough.`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := open(app)
			if err != nil {
				return err
			}
			r, err := history.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := history.Delete(cmd.Context(), r.Metadata.RunID); err != nil {
				return err
			}
			app.Logger().Debug().Str("run_id", r.Metadata.RunID).Msg("Deleted run")
			cmd.Printf("%s deleted run %s\n", emoji.Success, r.Metadata.RunID)
			return nil
		},
	}
}

func open(app application.Application) (application.History, error) {
	history, err := app.History()
	if err != nil {
		return nil, err
	}
	if history == nil {
		return nil, &errors.ValidationError{Field: "history_db", Message: "no history database configured"}
	}
	return history, nil
}
