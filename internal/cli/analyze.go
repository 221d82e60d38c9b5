// analyze.go implements the "repolens analyze" command: submit a task,
// review the cost estimate, confirm or abort, print the result.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/session"
	"github.com/repolens-dev/repolens/internal/ui"
)

var (
	analyzeRepo string
	analyzeYes  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <task>",
	Short: "Analyze a repository for a task",
	Long: `Submit a task against a repository. The backend estimates the cost
first; the analysis runs only after you confirm (or pass --yes).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRepo, "repo", ".", "Path to the repository to analyze")
	analyzeCmd.Flags().BoolVarP(&analyzeYes, "yes", "y", false, "Confirm the estimate without prompting")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	task := strings.Join(args, " ")

	if err := a.machine.Submit(cmd.Context(), task, analyzeRepo); err != nil {
		return err
	}

	snap := a.machine.Snapshot()
	if snap.Err != "" {
		return fmt.Errorf("analysis failed: %s", snap.Err)
	}

	if snap.Phase == session.AwaitingConfirmation {
		est := snap.Pending
		ui.Header("Estimated analysis cost")
		fmt.Println("  " + ui.FormatCost(est.Tokens, est.CostUSD))

		if !analyzeYes && !promptYes("Run the analysis?") {
			if err := a.machine.Cancel(); err != nil {
				return err
			}
			ui.Warn("Canceled. The conversation %s stays in history, unconfirmed.", ui.ShortID(est.RequestID))
			return nil
		}

		if err := a.machine.Confirm(cmd.Context()); err != nil {
			return err
		}
		snap = a.machine.Snapshot()
		if snap.Err != "" {
			return fmt.Errorf("confirmation failed: %s", snap.Err)
		}
	}

	conv := a.machine.Active()
	if conv == nil {
		return fmt.Errorf("analysis finished but no conversation is active")
	}

	printConversation(conv)
	ui.Dim("Ask follow-ups with: repolens ask \"...\" --id %s", ui.ShortID(conv.ID))
	return nil
}

func printConversation(conv *conversation.Conversation) {
	ui.Header(fmt.Sprintf("Analysis %s", ui.ShortID(conv.ID)))
	fmt.Println(ui.FormatHistory(conversation.History(conv)))
}

// promptYes asks a y/N question on stdin.
func promptYes(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
