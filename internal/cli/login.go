// login.go implements "repolens login" and "repolens logout". Signing in
// only enables best-effort remote mirroring of conversation history; all
// analysis features work signed out.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/repolens-dev/repolens/internal/auth"
	"github.com/repolens-dev/repolens/internal/log"
	"github.com/repolens-dev/repolens/internal/ui"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in to enable remote history mirroring",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "API token (prompted for when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	token := loginToken
	if token == "" {
		fmt.Print("API token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = string(raw)
	}
	if token == "" {
		return fmt.Errorf("a token is required to sign in")
	}

	email := args[0]
	if err := a.auth.SignIn(auth.Identity{Email: email, Token: token}); err != nil {
		return err
	}
	_ = a.logger.Append(log.Event{Event: log.EventSignedIn, User: email})

	ui.Success("Signed in as %s. Follow-ups and deletions will be mirrored remotely.", email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.auth.Current() == nil {
		ui.Dim("Already signed out.")
		return nil
	}

	if err := a.auth.SignOut(); err != nil {
		return err
	}
	_ = a.logger.Append(log.Event{Event: log.EventSignedOut})

	ui.Success("Signed out. History stays local from here on.")
	return nil
}
