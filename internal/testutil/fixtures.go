// Package testutil provides shared fixtures for repolens tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/gateway"
	"github.com/repolens-dev/repolens/internal/log"
	"github.com/repolens-dev/repolens/internal/storage"
)

// FakeGateway is a scripted gateway.Gateway. Zero value: estimates need
// confirmation at 5000 tokens / $0.12, confirm returns DefaultResult,
// ask echoes a canned answer.
type FakeGateway struct {
	// NoConfirmation makes Estimate return a populated result directly.
	NoConfirmation bool
	Tokens         int
	CostUSD        float64
	Result         *conversation.Result
	Answer         string

	// Failures, when set, are returned instead of a response.
	EstimateErr error
	ConfirmErr  error
	AskErr      error

	// Call records.
	EstimateCalls  int
	ConfirmCalls   int
	AskCalls       int
	LastRequestID  string
	LastQuestion   string
	IssuedRequests []string
}

// DefaultResult is the analysis output the fake returns unless overridden.
func DefaultResult() *conversation.Result {
	return &conversation.Result{
		Files:           []string{"a.js"},
		Recommendations: "refactor a.js",
	}
}

// Estimate implements gateway.Gateway.
func (f *FakeGateway) Estimate(_ context.Context, task, repoPath string) (*gateway.EstimateResponse, error) {
	f.EstimateCalls++
	if f.EstimateErr != nil {
		return nil, f.EstimateErr
	}

	id := uuid.New().String()
	f.IssuedRequests = append(f.IssuedRequests, id)
	f.LastRequestID = id

	tokens := f.Tokens
	if tokens == 0 {
		tokens = 5000
	}
	cost := f.CostUSD
	if cost == 0 {
		cost = 0.12
	}

	resp := &gateway.EstimateResponse{
		NeedsConfirmation: !f.NoConfirmation,
		RequestID:         id,
		EstimatedTokens:   tokens,
		EstimatedCost:     cost,
	}
	if f.NoConfirmation {
		resp.Result = f.result()
	}
	return resp, nil
}

// Confirm implements gateway.Gateway.
func (f *FakeGateway) Confirm(_ context.Context, requestID string) (*conversation.Result, error) {
	f.ConfirmCalls++
	f.LastRequestID = requestID
	if f.ConfirmErr != nil {
		return nil, f.ConfirmErr
	}
	return f.result(), nil
}

// Ask implements gateway.Gateway.
func (f *FakeGateway) Ask(_ context.Context, question, requestID string) (string, error) {
	f.AskCalls++
	f.LastRequestID = requestID
	f.LastQuestion = question
	if f.AskErr != nil {
		return "", f.AskErr
	}
	if f.Answer != "" {
		return f.Answer, nil
	}
	return "because it matched the task", nil
}

func (f *FakeGateway) result() *conversation.Result {
	if f.Result != nil {
		return f.Result
	}
	return DefaultResult()
}

// NewLogger creates a throwaway logger under t.TempDir().
func NewLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	return logger
}

// NewStore creates a file-backed store under t.TempDir().
func NewStore(t *testing.T) *conversation.Store {
	t.Helper()
	blob := storage.NewFile(filepath.Join(t.TempDir(), "conversations.json"))
	return conversation.Open(blob, NewLogger(t))
}
