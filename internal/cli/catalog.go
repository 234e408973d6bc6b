package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/geocoder89/mealplanner/internal/catalog"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/spf13/cobra"
)

func NewCatalogCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and load the menu catalog",
	}
	cmd.AddCommand(newCatalogImportCommand(opts))
	cmd.AddCommand(newCatalogListCommand(opts))
	return cmd
}

func newCatalogImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <menus.yaml>",
		Short: "Replace the whole catalog with the menus in a YAML file",
		Long: `Replace the whole catalog with the menus in a YAML file.

Slots missing from the file end up empty. Assignments already in the plan are
left as they are.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			menus, err := catalog.DecodeYAML(f)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Catalog.Import(ctx, menus); err != nil {
					return err
				}

				meals, desserts := 0, 0
				for _, m := range menus {
					meals += len(m.Meals)
					desserts += len(m.Desserts)
				}
				out := map[string]int{"days": len(menus), "meals": meals, "desserts": desserts}
				return emit(cmd.OutOrStdout(), opts, out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "imported %d days, %d meals, %d desserts\n", len(menus), meals, desserts)
					return err
				})
			})
		},
	}
}

func newCatalogListCommand(opts *RootOptions) *cobra.Command {
	var slot menu.Slot

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the options of one week/day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				weeks, days := a.Catalog.Cycle()
				if err := slot.Validate(weeks, days); err != nil {
					return err
				}

				m, err := a.Catalog.ListOptions(ctx, slot)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, m, func(w io.Writer) error {
					fmt.Fprintln(w, slot.String())
					for _, kind := range []menu.Kind{menu.KindMeal, menu.KindDessert} {
						fmt.Fprintf(w, "%ss:\n", kind.Title())
						for i, o := range m.Options(kind) {
							fmt.Fprintf(w, "  %d. %s\n", i+1, o.Name)
						}
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().IntVar(&slot.Week, "week", 1, "cycle week (1-based)")
	cmd.Flags().IntVar(&slot.Day, "day", 1, "serving day (1-based, 1 = Saturday)")
	return cmd
}
