package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xela07ax/nft-agents-console/internal/domain"
)

func newLoginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the backend and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("AGENTCTL_PASSWORD")
			}
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			u, err := console.Auth.Login(cmd.Context(), domain.LoginRequest{Username: username, Password: password})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (id %s)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (env: AGENTCTL_PASSWORD)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			if err := console.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			u, ok := console.Auth.CurrentUser()
			if !ok {
				return errors.New("not signed in, run `agentctl login`")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s, role %s)\n", u.Username, u.ID, u.Role)
			for _, p := range u.Permissions {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
			}
			return nil
		},
	}
}
