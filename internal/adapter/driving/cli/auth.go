package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		Long: `Login exchanges email and password for a token and stores it encrypted in the
local database. Without --password the password is read from the first line
of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					password = strings.TrimRight(scanner.Text(), "\r")
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			return opts.withApp(cmd.Context(), func(a *app) error {
				if err := a.auth.Login(cmd.Context(), email, password); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and wipe local session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(a *app) error {
				a.session.Restore(cmd.Context())
				if err := a.auth.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}
