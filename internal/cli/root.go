package cli

import (
	"context"

	"academic_outreach/internal/app"

	"github.com/spf13/cobra"
)

// SecretStore saves account passwords.
type SecretStore interface {
	Set(key, value string) error
}

// App holds references to everything the CLI commands use.
type App struct {
	Admin *app.AdminService
	Gate  *app.AdmissionService
	// Runner builds the mail stack and the pass runner on first use, so
	// commands that only touch the ledger work without an accounts file.
	// A non-empty account overrides the preferred sending account.
	Runner  func(account string) (*app.Runner, error)
	Serve   func(ctx context.Context) error
	Migrate func(ctx context.Context) (int, error)
	Secrets SecretStore // nil when the keyring is disabled
}

// NewRootCmd creates the top-level "outreach" command and registers all
// subcommands against the provided App.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Academic outreach emails, reminders and ledger administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(a),
		newOutreachCmd(a),
		newRemindCmd(a),
		newServeCmd(a),
		newAdmitCmd(a),
		newStatusCmd(a),
		newMarkCmd(a),
		newStageCmd(a),
		newSubjectCmd(a),
		newAccountCmd(a),
		newMigrateCmd(a),
	)

	return root
}
