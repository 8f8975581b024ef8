package cli

import (
	"fmt"
	"io"

	"academic_outreach/internal/app"

	"github.com/spf13/cobra"
)

func newRunCmd(a *App) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the outreach pass followed by the reminder pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.Runner(account)
			if err != nil {
				return err
			}
			reports, err := runner.RunAll(cmd.Context())
			printReports(cmd.OutOrStdout(), reports...)
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "sending account for subjects without one")
	return cmd
}

func newOutreachCmd(a *App) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "outreach",
		Short: "Send initial emails to subjects whose artifacts are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.Runner(account)
			if err != nil {
				return err
			}
			report, err := runner.RunOutreach(cmd.Context())
			printReports(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "sending account for subjects without one")
	return cmd
}

func newRemindCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send due reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.Runner("")
			if err != nil {
				return err
			}
			report, err := runner.RunReminders(cmd.Context())
			printReports(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func newServeCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run passes on their cron schedules, with the Telegram bot when configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Serve(cmd.Context())
		},
	}
}

func printReports(w io.Writer, reports ...*app.PassReport) {
	for _, r := range reports {
		if r != nil {
			fmt.Fprintln(w, r.Summary())
		}
	}
}
