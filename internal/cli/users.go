package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/geocoder89/mealplanner/internal/app"
	"github.com/spf13/cobra"
)

func NewUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "List users and toggle their access",
	}
	cmd.AddCommand(newUserListCommand(opts))
	cmd.AddCommand(newUserActiveCommand(opts, "activate", true))
	cmd.AddCommand(newUserActiveCommand(opts, "deactivate", false))
	return cmd
}

type userRow struct {
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	Connected bool   `json:"connected"`
}

func newUserListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				users, err := a.Identity.ListUsers(ctx)
				if err != nil {
					return err
				}

				rows := make([]userRow, 0, len(users))
				for _, u := range users {
					rows = append(rows, userRow{
						Username:  u.Username,
						FullName:  u.FullName,
						Role:      string(u.Role),
						Active:    u.Active,
						Connected: u.Linked(),
					})
				}

				return emit(cmd.OutOrStdout(), opts, rows, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "USERNAME\tNAME\tROLE\tACTIVE\tCONNECTED")
					for _, r := range rows {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", r.Username, r.FullName, r.Role, r.Active, r.Connected)
					}
					return tw.Flush()
				})
			})
		},
	}
}

func newUserActiveCommand(opts *RootOptions, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: "Set whether a user may log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Identity.SetActive(ctx, args[0], active); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: active=%t\n", args[0], active)
				return err
			})
		},
	}
}
