package cli

import (
	"fmt"
	"strconv"

	"academic_outreach/internal/domain/ledger"

	"github.com/spf13/cobra"
)

func parseSubjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject ID %q", s)
	}
	return id, nil
}

func newStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [subject-id]",
		Short: "Show the ledger overview or the chronology of one subject",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				o, err := a.Admin.Overview(cmd.Context(), a.Admin.AdminID())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), o.Format())
				return nil
			}
			id, err := parseSubjectID(args[0])
			if err != nil {
				return err
			}
			st, err := a.Admin.Status(cmd.Context(), a.Admin.AdminID(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.Format())
			return nil
		},
	}
}

func newMarkCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <subject-id> <status>",
		Short: "Record the reply status of a subject",
		Long: "Record the reply status of a subject. Status is a name or code: " +
			"no_answer (0), positive (1), negative (2), out_of_office (3), " +
			"follow_up_needed (4), do_not_contact (10), stale_no_response (20).",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSubjectID(args[0])
			if err != nil {
				return err
			}
			status, err := ledger.ParseResponseStatus(args[1])
			if err != nil {
				return err
			}
			if err := a.Admin.MarkResponse(cmd.Context(), a.Admin.AdminID(), id, status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject %d marked %s\n", id, status)
			return nil
		},
	}
}

func newStageCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <subject-id> <stage> [true|false]",
		Short: "Set a stage flag (gathering, filtering, html, cv, email_sent)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSubjectID(args[0])
			if err != nil {
				return err
			}
			stage, err := ledger.ParseStage(args[1])
			if err != nil {
				return err
			}
			value := true
			if len(args) == 3 {
				if value, err = strconv.ParseBool(args[2]); err != nil {
					return fmt.Errorf("invalid value %q: expected true or false", args[2])
				}
			}
			if err := a.Admin.SetStage(cmd.Context(), a.Admin.AdminID(), id, stage, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject %d %s=%t\n", id, stage, value)
			return nil
		},
	}
}

func newAdmitCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "admit <organization>",
		Short: "Check whether a new subject of the organization may be contacted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.Gate.CanAdmit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: open\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: held by an unresolved outreach\n", args[0])
			}
			return nil
		},
	}
}

func newMigrateCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := a.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
