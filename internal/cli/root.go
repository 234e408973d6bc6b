// Package cli implements mealctl, the operator command line for the meal
// planner's stores.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/geocoder89/mealplanner/internal/config"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the config source shared by all commands.
type RootOptions struct {
	Format string // "json" | "text"

	// LoadConfig defaults to config.Load; tests point it at a temp dir.
	LoadConfig func() config.Config
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}

	cmd := &cobra.Command{
		Use:   "mealctl",
		Short: "Operate the meal planner stores",
		Long:  "mealctl imports menus, manages users, prints the change log and exports the meal plan.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSeedAdminCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

// withApp opens the stores for the duration of fn. Logs go to stderr so
// json output stays clean.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg := opts.LoadConfig()
	log := observability.NewLoggerTo(cfg.Env, cmd.ErrOrStderr())

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}

// emit writes v as indented json, or text() in text mode.
func emit(w io.Writer, opts *RootOptions, v any, text func(io.Writer) error) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
