// list.go implements the "repolens list" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repolens-dev/repolens/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	conversations := a.store.List()
	if len(conversations) == 0 {
		ui.Dim("No conversations yet. Start one with 'repolens analyze'.")
		return nil
	}

	ui.Header(fmt.Sprintf("Conversations (%d)", len(conversations)))
	for _, c := range conversations {
		fmt.Println("  " + ui.FormatConversationLine(c))
	}
	return nil
}
