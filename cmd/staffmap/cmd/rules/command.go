// Package rules implements the rules command group.
package rules

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/staffmap/cmd/application"
	"github.com/agentstation/staffmap/internal/cmd/emoji"
	"github.com/agentstation/staffmap/internal/cmd/output"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
	"github.com/agentstation/staffmap/pkg/mapping"
)

// NewCommand creates the rules command group.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		GroupID: "management",
		Short:   "Inspect and validate mapping rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(NewValidateCommand(app))
	cmd.AddCommand(NewListCommand(app))
	return cmd
}

// NewValidateCommand creates the rules validate subcommand.
func NewValidateCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check rule files without running a reconciliation",
		Long: `Validate loads each rule file and reports the first malformed rule.
Without arguments the configured rule file is checked.`,
		Example: `  staffmap rules validate rules.yaml
  staffmap rules validate base.yaml night.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := rulePaths(app, args)
			if err != nil {
				return err
			}

			var failed int
			for _, path := range paths {
				registry, err := mapping.LoadRegistry(path)
				if err != nil {
					failed++
					cmd.Printf("%s %s: %v\n", emoji.Error, path, err)
					continue
				}
				cmd.Printf("%s %s: %d rules, ruleset %s\n", emoji.Success, path, registry.Len(), registry.Fingerprint())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rule files invalid", failed, len(paths))
			}
			return nil
		},
	}
}

// NewListCommand creates the rules list subcommand.
func NewListCommand(app application.Application) *cobra.Command {
	var labels bool

	cmd := &cobra.Command{
		Use:   "list [file]",
		Short: "List rules in evaluation order",
		Args:  cobra.MaximumNArgs(1),
		Example: `  staffmap rules list
  staffmap rules list rules.yaml -o yaml
  staffmap rules list --labels`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := rulePaths(app, args)
			if err != nil {
				return err
			}
			registry, err := mapping.LoadRegistry(paths[0])
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			format = output.DetectFormat(string(format))

			if labels {
				vocab := registry.Vocabulary()
				return output.FormatAny(cmd.OutOrStdout(), map[string][]string{
					string(ledger.Supply): vocab.Labels(ledger.Supply),
					string(ledger.Demand): vocab.Labels(ledger.Demand),
				}, format)
			}

			app.Logger().Debug().Str("ruleset", registry.Fingerprint()).Int("rules", registry.Len()).Msg("Loaded rules")
			return output.FormatRules(cmd.OutOrStdout(), registry.Rules(), format)
		},
	}

	cmd.Flags().BoolVar(&labels, "labels", false, "list the literal labels the rules reference instead of the rules")
	return cmd
}

func rulePaths(app application.Application, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if path := app.RulesPath(); path != "" {
		return []string{path}, nil
	}
	return nil, &errors.ValidationError{Field: "rules", Message: "no rule file given and none configured"}
}
