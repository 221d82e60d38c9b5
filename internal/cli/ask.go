// ask.go implements the "repolens ask" command for follow-up questions.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repolens-dev/repolens/internal/ui"
)

var askID string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a follow-up question about a completed analysis",
	Long: `Ask a question answered in the context of an existing analysis.
Defaults to the most recent completed conversation; use --id to target
another one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askID, "id", "", "Conversation id (prefix accepted)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := askID
	if id == "" {
		latest := a.latestConfirmed()
		if latest == nil {
			return fmt.Errorf("no completed analysis to ask about; run 'repolens analyze' first")
		}
		id = latest.ID
	} else {
		if id, err = a.resolveID(id); err != nil {
			return err
		}
	}

	if err := a.machine.Select(id); err != nil {
		return err
	}

	question := strings.Join(args, " ")
	if err := a.machine.AskFollowUp(cmd.Context(), question); err != nil {
		return err
	}

	snap := a.machine.Snapshot()
	if snap.Err != "" {
		return fmt.Errorf("follow-up failed: %s", snap.Err)
	}

	conv := a.machine.Active()
	if conv == nil || len(conv.FollowUps) == 0 {
		return fmt.Errorf("follow-up finished but no answer was recorded")
	}

	last := conv.FollowUps[len(conv.FollowUps)-1]
	ui.Header(fmt.Sprintf("Q: %s", last.Question))
	fmt.Println(last.Answer)
	return nil
}
