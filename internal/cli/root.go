// Package cli defines Cobra command definitions for the repolens CLI.
// This file contains the root command, version flag, and help output.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/repolens-dev/repolens/internal/tui"
	tuiapp "github.com/repolens-dev/repolens/internal/tui/app"
	"github.com/repolens-dev/repolens/internal/ui"
)

var version = "dev" // set via ldflags at build time

var rootCmd = &cobra.Command{
	Use:   "repolens",
	Short: "Conversational repository analysis client",
	Long: `RepoLens submits analysis tasks against a repository to the RepoLens
backend. Expensive analyses are estimated first and run only after you
confirm the cost. Completed analyses accept follow-up questions, and every
conversation is kept locally for listing, resumption, and deletion.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// When no subcommand is provided, launch the TUI if TTY, show help otherwise
		if !tui.IsTTY() {
			return cmd.Help()
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return tui.Run(tuiapp.New(a.machine, a.store))
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
