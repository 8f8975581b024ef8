package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"academic_outreach/internal/domain/subject"

	"github.com/spf13/cobra"
)

func newSubjectCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Manage outreach subjects",
	}
	cmd.AddCommand(newSubjectAddCmd(a), newSubjectCorrectCmd(a))
	return cmd
}

func newSubjectAddCmd(a *App) *cobra.Command {
	var s subject.Subject
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.Admin.AddSubject(cmd.Context(), a.Admin.AdminID(), &s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject %d added: %s (%s)\n", created.ID, created.Name, created.Organization)
			return nil
		},
	}
	cmd.Flags().Int64Var(&s.ID, "id", 0, "subject ID (next free ID when omitted)")
	cmd.Flags().StringVar(&s.Name, "name", "", "full name")
	cmd.Flags().StringVar(&s.Organization, "org", "", "organization")
	cmd.Flags().StringVar(&s.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&s.Webpage, "webpage", "", "webpage URL")
	cmd.Flags().StringVar(&s.ResearchArea, "area", "", "research area")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSubjectCorrectCmd(a *App) *cobra.Command {
	var org, email string
	cmd := &cobra.Command{
		Use:   "correct <subject-id>",
		Short: "Correct the organization or email of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSubjectID(args[0])
			if err != nil {
				return err
			}
			if org == "" && email == "" {
				return errors.New("nothing to correct: pass --org and/or --email")
			}
			updated, err := a.Admin.CorrectSubject(cmd.Context(), a.Admin.AdminID(), id, org, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject %d: %s, %s\n", updated.ID, updated.Organization, updated.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "new organization")
	cmd.Flags().StringVar(&email, "email", "", "new contact email")
	return cmd
}

func newAccountCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage sending account credentials",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-password <address>",
		Short: "Store the password of an account in the keyring (read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.Secrets == nil {
				return errors.New("keyring is disabled, set KEYRING_ENABLED=true")
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("empty password")
			}
			address := strings.ToLower(strings.TrimSpace(args[0]))
			if err := a.Secrets.Set(address, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password stored for %s\n", address)
			return nil
		},
	})
	return cmd
}
