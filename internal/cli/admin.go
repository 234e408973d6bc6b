package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/geocoder89/mealplanner/internal/db"
	"github.com/spf13/cobra"
)

func NewSeedAdminCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the configured administrator and its plan row if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Bootstrap(ctx); err != nil {
					return err
				}
				out := map[string]string{"username": a.Cfg.AdminUsername}
				return emit(cmd.OutOrStdout(), opts, out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "administrator %q is ready\n", a.Cfg.AdminUsername)
					return err
				})
			})
		},
	}
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (postgres store only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.LoadConfig()
			if !cfg.UsePostgres() {
				return errors.New("migrate needs STORE_BACKEND=postgres")
			}
			if err := db.Migrate(cmd.Context(), cfg.DBURL); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}
