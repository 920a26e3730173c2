package cmd

import (
	"fmt"

	"danyak/term"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSignInCmd(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "sign-in",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := askCredentials(cmd, email, password)
			if err != nil {
				return err
			}

			term.StartSpinner("🔑 Signing in...")
			session, err := app.Auth.SignIn(cmd.Context(), email, password)
			term.StopSpinner()

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✅ Signed in as "+color.New(color.Bold, term.ColorHiGreen).Sprint(session.Email))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")

	return cmd
}

func newSignUpCmd(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "sign-up",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := askCredentials(cmd, email, password)
			if err != nil {
				return err
			}

			term.StartSpinner("✏️  Creating account...")
			err = app.Auth.SignUp(cmd.Context(), email, password)
			term.StopSpinner()

			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if session := app.Auth.CurrentSession(); session != nil {
				fmt.Fprintln(out, "✅ Signed up and signed in as "+color.New(color.Bold, term.ColorHiGreen).Sprint(session.Email))
				return nil
			}

			fmt.Fprintf(out, "📧 Account created. Confirm %s from your inbox, then sign in.\n", email)
			term.PrintCmds(out, "", "sign-in")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")

	return cmd
}

func newSignOutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-out",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Auth.CurrentSession() == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "🤷 Not signed in")
				return nil
			}

			app.Auth.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			session := app.Auth.CurrentSession()
			if session == nil {
				fmt.Fprintln(out, "🤷 Not signed in")
				term.PrintCmds(out, "", "sign-in", "sign-up")
				return nil
			}

			fmt.Fprintln(out, "👤 "+color.New(color.Bold).Sprint(session.Email))
			fmt.Fprintln(out, "   id "+session.UserId)
			return nil
		},
	}
}

// askCredentials prompts for whatever wasn't passed as a flag. Empty values
// are left for the session manager to reject.
func askCredentials(cmd *cobra.Command, email, password string) (string, string, error) {
	var err error

	if !cmd.Flags().Changed("email") {
		email, err = term.GetUserStringInput("Email:")
		if err != nil {
			return "", "", err
		}
	}
	if !cmd.Flags().Changed("password") {
		password, err = term.GetUserPasswordInput("Password:")
		if err != nil {
			return "", "", err
		}
	}

	return email, password, nil
}
