// show.go implements the "repolens show" command: print one
// conversation's full Q&A timeline, optionally copying the
// recommendations to the clipboard.
package cli

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/ui"
)

var showCopy bool

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation's full history",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showCopy, "copy", false, "Copy the recommendations to the clipboard")
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.resolveID(args[0])
	if err != nil {
		return err
	}

	conv, _ := a.store.Get(id)
	printConversation(conv)

	if showCopy {
		if !conv.Confirmed() {
			ui.Warn("Nothing to copy: the analysis was never confirmed.")
			return nil
		}
		if err := clipboard.WriteAll(recommendationsText(conv)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
		} else {
			ui.Success("Recommendations copied to clipboard.")
		}
	}
	return nil
}

func recommendationsText(conv *conversation.Conversation) string {
	if conv.InitialResult == nil {
		return ""
	}
	return conv.InitialResult.Recommendations
}
