// Package gateway is the client for the RepoLens analysis backend. The
// backend exposes three operations correlated by an opaque request id:
// estimate the cost of an analysis, confirm a pending estimate, and ask a
// follow-up question against a completed analysis.
package gateway

import (
	"context"
	"errors"

	"github.com/repolens-dev/repolens/internal/conversation"
)

// ErrUnknownRequest indicates a confirm or ask call referenced a request
// id the backend no longer recognizes (stale or expired).
var ErrUnknownRequest = errors.New("unknown or expired request id")

// EstimateResponse is the backend's answer to an estimate call. When
// NeedsConfirmation is false the analysis already ran and Result carries
// the output; otherwise Result is nil and the estimate fields describe
// the cost awaiting confirmation.
type EstimateResponse struct {
	NeedsConfirmation bool
	RequestID         string
	EstimatedTokens   int
	EstimatedCost     float64
	Result            *conversation.Result
}

// Gateway is the transport-facing contract the session machine drives.
// Implementations bound call duration themselves; the machine imposes no
// timeouts of its own.
type Gateway interface {
	// Estimate submits the task for cost estimation. The backend may run
	// the analysis immediately instead of asking for confirmation.
	Estimate(ctx context.Context, task, repoPath string) (*EstimateResponse, error)

	// Confirm runs the analysis previously estimated under requestID.
	Confirm(ctx context.Context, requestID string) (*conversation.Result, error)

	// Ask answers a follow-up question in the context of the analysis
	// identified by requestID.
	Ask(ctx context.Context, question, requestID string) (string, error)
}
