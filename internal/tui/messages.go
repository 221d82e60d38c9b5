// Package tui implements the terminal user interface using Bubble Tea.
package tui

// ============================================================================
// Session Messages
// ============================================================================

// MachineUpdatedMsg signals that a session operation finished and the
// machine's snapshot should be re-read.
type MachineUpdatedMsg struct{}

// OpRejectedMsg signals that the machine rejected an operation locally
// (validation, busy, wrong state) before any backend call.
type OpRejectedMsg struct {
	Err error
}

// ============================================================================
// Utility Messages
// ============================================================================

// CopiedMsg signals that text was copied to the clipboard.
type CopiedMsg struct {
	Err error
}
