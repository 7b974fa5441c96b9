// Package application provides the application interface for staffmap commands.
//
// Commands accept an Application rather than the concrete App so they can be
// tested with internal/cmd/application.Mock.
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            engine, err := app.Engine()
//	            if err != nil {
//	                return err
//	            }
//	            r, err := engine.ReconcileMaps(cmd.Context(), supply, demand)
//	            // ... format r
//	        },
//	    }
//	}
package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap"
	"github.com/agentstation/staffmap/internal/store"
	"github.com/agentstation/staffmap/pkg/report"
)

// History is the run history commands read and write.
type History interface {
	Save(ctx context.Context, r *report.Report) error
	List(ctx context.Context, limit int) ([]store.Entry, error)
	Get(ctx context.Context, id string) (*report.Report, error)
	Delete(ctx context.Context, id string) error
}

// Application provides what commands need from the app.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Engine builds a reconciliation engine from the configuration. Options
	// are applied after the configured ones, so commands can override them.
	Engine(opts ...staffmap.Option) (staffmap.Engine, error)

	// History opens the run history, or returns nil when none is configured.
	History() (History, error)

	// RulesPath returns the configured rule file.
	RulesPath() string

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
