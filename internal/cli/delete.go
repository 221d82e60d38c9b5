// delete.go implements "repolens delete" and "repolens clean".
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repolens-dev/repolens/internal/log"
	"github.com/repolens-dev/repolens/internal/ui"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation from local history. For signed-in users the
deletion is also forwarded to the remote mirror, best effort.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete all orphan conversations",
	Long: `Delete every conversation whose analysis was never confirmed.
Orphans are kept around after a cancel for auditability; clean removes
them in one sweep.`,
	RunE: runClean,
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.resolveID(args[0])
	if err != nil {
		return err
	}

	if err := a.store.Remove(id); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	_ = a.logger.Append(log.Event{Event: log.EventConversationDeleted, RequestID: id})

	ui.Success("Deleted conversation %s.", ui.ShortID(id))
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	removed := 0
	for _, c := range a.store.List() {
		if c.Confirmed() {
			continue
		}
		if err := a.store.Remove(c.ID); err != nil {
			return fmt.Errorf("deleting conversation %s: %w", c.ID, err)
		}
		_ = a.logger.Append(log.Event{Event: log.EventConversationDeleted, RequestID: c.ID})
		removed++
	}

	if removed == 0 {
		ui.Dim("No orphan conversations to clean.")
		return nil
	}
	ui.Success("Removed %d orphan conversation(s).", removed)
	return nil
}
