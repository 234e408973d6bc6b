package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/geocoder89/mealplanner/internal/export"
	"github.com/geocoder89/mealplanner/internal/report"
	"github.com/spf13/cobra"
)

func NewScheduleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Print the head of the meal plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				g, err := a.Planner.Snapshot(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Schedule(g.Records()))
				return err
			})
		},
	}
}

func NewAuditCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Print the change log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				text, err := a.Planner.AuditLog(ctx)
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), text)
				return err
			})
		},
	}
}

func NewExportCommand(opts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a CSV of the plan and a copy of the change log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if dir == "" {
					dir = a.Cfg.ExportDir
				}
				sink, err := export.NewFileSink(dir)
				if err != nil {
					return err
				}

				res, err := export.NewExporter(a.Planner, sink, a.Log).Run(ctx)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s\n%s\n", res.PlanKey, res.AuditKey)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "o", "", "output directory (default EXPORT_DIR)")
	return cmd
}
