// Package session drives the lifecycle of the single active analysis
// conversation: estimate, confirmation, execution, and follow-up.
//
// Admission control is the phase itself: entering a busy phase
// (Estimating, Confirming, AskingFollowUp) is what blocks further
// operations, and a submit/confirm/ask arriving while busy is rejected
// locally with ErrBusy, never queued. The machine issues at most one
// gateway call at a time as a consequence. A mutex guards the fields only
// because TUI commands complete on other goroutines; it is not the
// admission gate.
//
// Gateway failures never escape the machine: each operation either
// transitions state or captures the failure into the session's error
// field and restores the pre-call phase. The returned error is reserved
// for caller mistakes (validation, busy, wrong state).
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/gateway"
	"github.com/repolens-dev/repolens/internal/log"
)

// Phase is the lifecycle state of the active conversation.
type Phase string

// Phases. Complete is a rest state, not a terminal one: it accepts
// follow-ups indefinitely.
const (
	Idle                 Phase = "idle"
	Estimating           Phase = "estimating"
	AwaitingConfirmation Phase = "awaiting_confirmation"
	Confirming           Phase = "confirming"
	Complete             Phase = "complete"
	AskingFollowUp       Phase = "asking_follow_up"
)

// Operation errors returned to callers. Gateway failures are not returned;
// they land in the session's Err field.
var (
	ErrValidation = errors.New("invalid input")
	ErrBusy       = errors.New("an operation is already in progress")
	ErrWrongState = errors.New("operation not allowed in this state")
	ErrOrphan     = errors.New("conversation was never confirmed")
)

// Estimate is the pending cost awaiting user confirmation.
type Estimate struct {
	RequestID string
	Tokens    int
	CostUSD   float64
}

// Snapshot is a consistent read of the session's transient state.
type Snapshot struct {
	Phase    Phase
	ActiveID string
	Pending  *Estimate // non-nil only while awaiting confirmation
	Err      string    // last failure, cleared by the next successful transition
}

// Machine is the session state machine. It references the active
// conversation by id only; the store owns the records.
type Machine struct {
	gw     gateway.Gateway
	store  *conversation.Store
	logger *log.Logger

	mu       sync.Mutex
	phase    Phase
	activeID string
	pending  *Estimate
	err      string
}

// New creates a Machine in the Idle phase and subscribes it to store
// deletions so that removing the active conversation clears the session's
// reference.
func New(gw gateway.Gateway, store *conversation.Store, logger *log.Logger) *Machine {
	m := &Machine{
		gw:     gw,
		store:  store,
		logger: logger,
		phase:  Idle,
	}
	store.Subscribe(m)
	return m
}

// Snapshot returns the current transient state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Phase:    m.phase,
		ActiveID: m.activeID,
		Err:      m.err,
	}
	if m.pending != nil {
		p := *m.pending
		snap.Pending = &p
	}
	return snap
}

// Active returns the active conversation from the store, or nil if the
// session references none.
func (m *Machine) Active() *conversation.Conversation {
	m.mu.Lock()
	id := m.activeID
	m.mu.Unlock()

	if id == "" {
		return nil
	}
	conv, ok := m.store.Get(id)
	if !ok {
		return nil
	}
	return conv
}

// Submit issues an estimate for the task against repoPath. On success the
// conversation is created and persisted immediately, visible in history
// even if the user abandons before confirming.
func (m *Machine) Submit(ctx context.Context, task, repoPath string) error {
	task = strings.TrimSpace(task)
	repoPath = strings.TrimSpace(repoPath)
	if task == "" || repoPath == "" {
		return fmt.Errorf("%w: task and repository path are required", ErrValidation)
	}

	m.mu.Lock()
	if m.busyLocked() {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != Idle {
		m.mu.Unlock()
		return fmt.Errorf("%w: submit requires an idle session (reset first)", ErrWrongState)
	}
	m.phase = Estimating
	m.mu.Unlock()

	_ = m.logger.Append(log.Event{Event: log.EventEstimateRequested, Task: task, RepoPath: repoPath})

	resp, err := m.gw.Estimate(ctx, task, repoPath)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.phase = Idle
		m.err = err.Error()
		_ = m.logger.Append(log.Event{Event: log.EventGatewayError, Task: task, Error: err.Error()})
		return nil
	}

	conv := &conversation.Conversation{
		ID:        resp.RequestID,
		Task:      task,
		RepoPath:  repoPath,
		CreatedAt: time.Now().UTC(),
	}

	if resp.NeedsConfirmation {
		_ = m.store.Put(conv)
		m.pending = &Estimate{
			RequestID: resp.RequestID,
			Tokens:    resp.EstimatedTokens,
			CostUSD:   resp.EstimatedCost,
		}
		m.phase = AwaitingConfirmation
		_ = m.logger.Append(log.Event{
			Event:     log.EventConfirmationRequired,
			RequestID: resp.RequestID,
			Tokens:    resp.EstimatedTokens,
			CostUSD:   resp.EstimatedCost,
		})
	} else {
		conv.InitialResult = resp.Result
		_ = m.store.Put(conv)
		m.pending = nil
		m.phase = Complete
		_ = m.logger.Append(log.Event{Event: log.EventAnalysisComplete, RequestID: resp.RequestID})
	}

	m.activeID = resp.RequestID
	m.err = ""
	return nil
}

// Confirm runs the analysis whose estimate is pending. On failure the
// session returns to AwaitingConfirmation with the estimate retained, so
// the user can retry without re-estimating.
func (m *Machine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	if m.busyLocked() {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != AwaitingConfirmation || m.pending == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no estimate awaiting confirmation", ErrWrongState)
	}
	// Pin the id the call is issued for; the result is applied to this
	// conversation no matter what the session looks like afterwards.
	id := m.pending.RequestID
	m.phase = Confirming
	m.mu.Unlock()

	result, err := m.gw.Confirm(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		// If the conversation was deleted mid-flight the estimate is gone
		// too; otherwise it is retained for a retry.
		if m.pending != nil {
			m.phase = AwaitingConfirmation
		} else {
			m.phase = Idle
		}
		m.err = err.Error()
		_ = m.logger.Append(log.Event{Event: log.EventGatewayError, RequestID: id, Error: err.Error()})
		return nil
	}

	// First and only write of InitialResult. Skip it if the conversation
	// was deleted while the call was in flight.
	if conv, ok := m.store.Get(id); ok && conv.InitialResult == nil {
		conv.InitialResult = result
		_ = m.store.Put(conv)
	}

	m.pending = nil
	m.err = ""
	if m.activeID == "" {
		m.phase = Idle
	} else {
		m.phase = Complete
	}
	_ = m.logger.Append(log.Event{Event: log.EventAnalysisComplete, RequestID: id})
	return nil
}

// Cancel abandons a pending estimate without contacting the backend. The
// conversation created at estimate time stays in the store as an orphan,
// visible in history but not resumable.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != AwaitingConfirmation {
		return fmt.Errorf("%w: nothing to cancel", ErrWrongState)
	}

	id := m.activeID
	m.pending = nil
	m.activeID = ""
	m.err = ""
	m.phase = Idle
	_ = m.logger.Append(log.Event{Event: log.EventAnalysisCanceled, RequestID: id})
	return nil
}

// AskFollowUp asks a question in the context of the active conversation.
// The answer is appended to the conversation the call was issued for; a
// failed call appends nothing.
func (m *Machine) AskFollowUp(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("%w: question is required", ErrValidation)
	}

	m.mu.Lock()
	if m.busyLocked() {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.phase != Complete || m.activeID == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: follow-ups require a completed analysis", ErrWrongState)
	}
	id := m.activeID
	m.phase = AskingFollowUp
	m.mu.Unlock()

	answer, err := m.gw.Ask(ctx, question, id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.restPhaseLocked()
		m.err = err.Error()
		_ = m.logger.Append(log.Event{Event: log.EventGatewayError, RequestID: id, Question: question, Error: err.Error()})
		return nil
	}

	fu := conversation.FollowUp{
		Question: question,
		Answer:   answer,
		AskedAt:  time.Now().UTC(),
	}
	// ErrNotFound here means the conversation was deleted mid-flight; the
	// answer has nowhere to go and is dropped.
	if err := m.store.AppendFollowUp(id, fu); err != nil {
		_ = m.logger.Append(log.Event{Event: log.EventPersistFailed, RequestID: id, Error: err.Error()})
	} else {
		_ = m.logger.Append(log.Event{Event: log.EventFollowUpAnswered, RequestID: id, Question: question})
	}

	m.restPhaseLocked()
	m.err = ""
	return nil
}

// restPhaseLocked settles a finished follow-up call: Complete while an
// active conversation remains, Idle if it was deleted mid-flight.
func (m *Machine) restPhaseLocked() {
	if m.activeID == "" {
		m.phase = Idle
	} else {
		m.phase = Complete
	}
}

// Reset returns the session to Idle, clearing the active reference, any
// pending estimate, and the error. The store is untouched.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeID = ""
	m.pending = nil
	m.err = ""
	m.phase = Idle
}

// Select makes a stored, completed conversation the active one without
// contacting the backend, abandoning whatever was in progress. Selecting
// while a call is outstanding is rejected so an in-flight result cannot
// land on the wrong conversation.
func (m *Machine) Select(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busyLocked() {
		return ErrBusy
	}

	conv, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, conversation.ErrNotFound)
	}
	if !conv.Confirmed() {
		return fmt.Errorf("select %s: %w", id, ErrOrphan)
	}

	m.activeID = id
	m.pending = nil
	m.err = ""
	m.phase = Complete
	_ = m.logger.Append(log.Event{Event: log.EventConversationSelected, RequestID: id})
	return nil
}

// FollowUpAppended implements conversation.Observer.
func (m *Machine) FollowUpAppended(string, conversation.FollowUp) {}

// ConversationRemoved implements conversation.Observer: deleting the
// active conversation clears the session's reference.
func (m *Machine) ConversationRemoved(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID != id {
		return
	}
	m.activeID = ""
	m.pending = nil
	// A busy phase settles itself when its call completes and finds the
	// reference gone.
	if !m.busyLocked() {
		m.phase = Idle
	}
}

func (m *Machine) busyLocked() bool {
	switch m.phase {
	case Estimating, Confirming, AskingFollowUp:
		return true
	}
	return false
}
