package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/gateway"
	"github.com/repolens-dev/repolens/internal/session"
	"github.com/repolens-dev/repolens/internal/testutil"
)

func newMachine(t *testing.T, gw gateway.Gateway) (*session.Machine, *conversation.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	return session.New(gw, store, testutil.NewLogger(t)), store
}

func TestSubmitValidation(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, store := newMachine(t, fake)

	cases := []struct {
		name     string
		task     string
		repoPath string
	}{
		{"empty task", "", "/repo"},
		{"empty path", "find bugs", ""},
		{"whitespace task", "   ", "/repo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.Submit(context.Background(), tc.task, tc.repoPath)
			if !errors.Is(err, session.ErrValidation) {
				t.Fatalf("Submit error = %v, want ErrValidation", err)
			}
		})
	}

	if fake.EstimateCalls != 0 {
		t.Errorf("gateway called %d times for invalid input, want 0", fake.EstimateCalls)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d conversations after rejected submits, want 0", store.Len())
	}
	if got := m.Snapshot().Phase; got != session.Idle {
		t.Errorf("phase = %v, want Idle", got)
	}
}

func TestSubmitNeedsConfirmation(t *testing.T) {
	fake := &testutil.FakeGateway{Tokens: 5000, CostUSD: 0.12}
	m, store := newMachine(t, fake)

	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.Phase != session.AwaitingConfirmation {
		t.Fatalf("phase = %v, want AwaitingConfirmation", snap.Phase)
	}
	if snap.Pending == nil {
		t.Fatal("pending estimate is nil")
	}
	if snap.Pending.Tokens != 5000 || snap.Pending.CostUSD != 0.12 {
		t.Errorf("pending = %+v, want 5000 tokens / $0.12", snap.Pending)
	}

	// The conversation is persisted immediately, before confirmation.
	conv, ok := store.Get(fake.LastRequestID)
	if !ok {
		t.Fatal("conversation not in store after estimate")
	}
	if conv.InitialResult != nil {
		t.Error("initial result set before confirmation")
	}
	if conv.Task != "find bugs" || conv.RepoPath != "/repo" {
		t.Errorf("conversation = %+v, wrong task or path", conv)
	}
	if snap.ActiveID != conv.ID {
		t.Errorf("active id = %q, want %q", snap.ActiveID, conv.ID)
	}
}

func TestSubmitImmediateResult(t *testing.T) {
	fake := &testutil.FakeGateway{NoConfirmation: true}
	m, store := newMachine(t, fake)

	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.Phase != session.Complete {
		t.Fatalf("phase = %v, want Complete", snap.Phase)
	}
	if snap.Pending != nil {
		t.Error("pending estimate set on an immediate result")
	}

	conv, ok := store.Get(fake.LastRequestID)
	if !ok {
		t.Fatal("conversation not in store")
	}
	if !conv.Confirmed() {
		t.Fatal("conversation not confirmed despite immediate result")
	}
	if fake.ConfirmCalls != 0 {
		t.Errorf("confirm called %d times, want 0", fake.ConfirmCalls)
	}
}

func TestSubmitGatewayFailure(t *testing.T) {
	fake := &testutil.FakeGateway{EstimateErr: errors.New("backend unreachable")}
	m, store := newMachine(t, fake)

	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit returned %v, want nil (failure captured in session)", err)
	}

	snap := m.Snapshot()
	if snap.Phase != session.Idle {
		t.Errorf("phase = %v, want Idle", snap.Phase)
	}
	if snap.Err == "" {
		t.Error("session error empty after gateway failure")
	}
	if store.Len() != 0 {
		t.Errorf("store has %d conversations after failed estimate, want 0", store.Len())
	}
}

func TestConfirmSuccess(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, store := newMachine(t, fake)

	mustSubmit(t, m)
	id := fake.LastRequestID

	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.Phase != session.Complete {
		t.Fatalf("phase = %v, want Complete", snap.Phase)
	}
	if snap.Err != "" {
		t.Errorf("session error = %q, want empty", snap.Err)
	}
	if snap.Pending != nil {
		t.Error("pending estimate retained after successful confirm")
	}

	conv, _ := store.Get(id)
	if conv.InitialResult == nil {
		t.Fatal("initial result not written")
	}
	if conv.Task != "find bugs" {
		t.Errorf("task changed to %q during confirm", conv.Task)
	}
	if len(conv.FollowUps) != 0 {
		t.Errorf("follow-ups = %d, want 0", len(conv.FollowUps))
	}
}

func TestConfirmFailureRetainsEstimate(t *testing.T) {
	fake := &testutil.FakeGateway{ConfirmErr: errors.New("analysis crashed")}
	m, store := newMachine(t, fake)

	mustSubmit(t, m)
	id := fake.LastRequestID

	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm returned %v, want nil (failure captured in session)", err)
	}

	snap := m.Snapshot()
	if snap.Phase != session.AwaitingConfirmation {
		t.Fatalf("phase = %v, want AwaitingConfirmation (retry possible)", snap.Phase)
	}
	if snap.Pending == nil {
		t.Fatal("pending estimate dropped; retry would require re-estimating")
	}
	if snap.Err == "" {
		t.Error("session error empty after failed confirm")
	}

	conv, _ := store.Get(id)
	if conv.InitialResult != nil {
		t.Error("initial result written despite failure")
	}

	// Retry succeeds.
	fake.ConfirmErr = nil
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("retry Confirm failed: %v", err)
	}
	if got := m.Snapshot().Phase; got != session.Complete {
		t.Errorf("phase after retry = %v, want Complete", got)
	}
	if fake.EstimateCalls != 1 {
		t.Errorf("estimate called %d times, want 1 (no re-estimate)", fake.EstimateCalls)
	}
}

func TestConfirmWrongState(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, store := newMachine(t, fake)

	if err := m.Confirm(context.Background()); !errors.Is(err, session.ErrWrongState) {
		t.Fatalf("Confirm from Idle = %v, want ErrWrongState", err)
	}
	if fake.ConfirmCalls != 0 {
		t.Errorf("gateway confirm called %d times, want 0", fake.ConfirmCalls)
	}
	if store.Len() != 0 {
		t.Errorf("store mutated by rejected confirm")
	}
}

func TestCancelKeepsOrphan(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, store := newMachine(t, fake)

	mustSubmit(t, m)
	id := fake.LastRequestID

	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.Phase != session.Idle {
		t.Errorf("phase = %v, want Idle", snap.Phase)
	}
	if snap.ActiveID != "" {
		t.Errorf("active id = %q, want empty", snap.ActiveID)
	}

	// The orphan stays in history, unconfirmed.
	conv, ok := store.Get(id)
	if !ok {
		t.Fatal("canceled conversation removed from store")
	}
	if conv.InitialResult != nil {
		t.Error("orphan has an initial result")
	}
}

func TestAskFollowUp(t *testing.T) {
	fake := &testutil.FakeGateway{Answer: "a.js builds the token"}
	m, store := newMachine(t, fake)

	mustSubmit(t, m)
	id := fake.LastRequestID
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := m.AskFollowUp(context.Background(), "why is a.js flagged?"); err != nil {
		t.Fatalf("AskFollowUp failed: %v", err)
	}

	if fake.LastRequestID != id {
		t.Errorf("ask carried id %q, want the active conversation's %q", fake.LastRequestID, id)
	}

	conv, _ := store.Get(id)
	if len(conv.FollowUps) != 1 {
		t.Fatalf("follow-ups = %d, want 1", len(conv.FollowUps))
	}
	fu := conv.FollowUps[0]
	if fu.Question != "why is a.js flagged?" || fu.Answer != "a.js builds the token" {
		t.Errorf("follow-up = %+v", fu)
	}

	entries := conversation.History(conv)
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(entries))
	}
	if got := m.Snapshot().Phase; got != session.Complete {
		t.Errorf("phase = %v, want Complete", got)
	}
}

func TestAskFollowUpFailureAppendsNothing(t *testing.T) {
	fake := &testutil.FakeGateway{AskErr: errors.New("timeout")}
	m, store := newMachine(t, fake)

	mustSubmit(t, m)
	id := fake.LastRequestID
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := m.AskFollowUp(context.Background(), "why?"); err != nil {
		t.Fatalf("AskFollowUp returned %v, want nil (failure captured in session)", err)
	}

	snap := m.Snapshot()
	if snap.Phase != session.Complete {
		t.Errorf("phase = %v, want Complete", snap.Phase)
	}
	if snap.Err == "" {
		t.Error("session error empty after failed follow-up")
	}

	conv, _ := store.Get(id)
	if len(conv.FollowUps) != 0 {
		t.Errorf("follow-ups = %d after failed call, want 0", len(conv.FollowUps))
	}
}

func TestAskFollowUpWrongState(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, _ := newMachine(t, fake)

	if err := m.AskFollowUp(context.Background(), "why?"); !errors.Is(err, session.ErrWrongState) {
		t.Fatalf("AskFollowUp from Idle = %v, want ErrWrongState", err)
	}

	if err := m.AskFollowUp(context.Background(), "  "); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("AskFollowUp empty question = %v, want ErrValidation", err)
	}
}

func TestReset(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, store := newMachine(t, fake)

	mustSubmit(t, m)
	m.Reset()

	snap := m.Snapshot()
	if snap.Phase != session.Idle || snap.ActiveID != "" || snap.Pending != nil || snap.Err != "" {
		t.Errorf("snapshot after reset = %+v, want pristine Idle", snap)
	}
	if store.Len() != 1 {
		t.Errorf("reset touched the store: %d conversations, want 1", store.Len())
	}
}

func TestSelect(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, store := newMachine(t, fake)

	// First conversation, completed.
	mustSubmit(t, m)
	first := fake.LastRequestID
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	// Second conversation, canceled (orphan).
	m.Reset()
	mustSubmit(t, m)
	orphan := fake.LastRequestID
	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// Resuming the completed one needs no gateway call.
	estimates := fake.EstimateCalls
	if err := m.Select(first); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if fake.EstimateCalls != estimates || fake.ConfirmCalls != 1 {
		t.Error("select contacted the gateway")
	}
	snap := m.Snapshot()
	if snap.Phase != session.Complete || snap.ActiveID != first {
		t.Errorf("snapshot = %+v, want Complete/%s", snap, first)
	}

	// Orphans are not resumable.
	if err := m.Select(orphan); !errors.Is(err, session.ErrOrphan) {
		t.Errorf("Select(orphan) = %v, want ErrOrphan", err)
	}

	// Unknown ids surface a benign error.
	if err := m.Select("nope"); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("Select(unknown) = %v, want ErrNotFound", err)
	}

	if store.Len() != 2 {
		t.Errorf("store has %d conversations, want 2", store.Len())
	}
}

func TestDeleteActiveClearsSession(t *testing.T) {
	fake := &testutil.FakeGateway{}
	m, store := newMachine(t, fake)

	mustSubmit(t, m)
	id := fake.LastRequestID
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := store.Remove(id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.ActiveID != "" {
		t.Errorf("active id = %q after deleting the active conversation, want empty", snap.ActiveID)
	}
	if snap.Phase != session.Idle {
		t.Errorf("phase = %v, want Idle", snap.Phase)
	}
	if m.Active() != nil {
		t.Error("Active() returned a deleted conversation")
	}
}

// gatewayHooks lets a test run code in the middle of a gateway call, to
// exercise mutations that race an in-flight operation.
type gatewayHooks struct {
	testutil.FakeGateway
	beforeConfirmReturn func()
	beforeAskReturn     func()
}

func (g *gatewayHooks) Confirm(ctx context.Context, requestID string) (*conversation.Result, error) {
	res, err := g.FakeGateway.Confirm(ctx, requestID)
	if g.beforeConfirmReturn != nil {
		g.beforeConfirmReturn()
	}
	return res, err
}

func (g *gatewayHooks) Ask(ctx context.Context, question, requestID string) (string, error) {
	answer, err := g.FakeGateway.Ask(ctx, question, requestID)
	if g.beforeAskReturn != nil {
		g.beforeAskReturn()
	}
	return answer, err
}

func TestConfirmResultForDeletedConversationIsDropped(t *testing.T) {
	gw := &gatewayHooks{}
	store := testutil.NewStore(t)
	m := session.New(gw, store, testutil.NewLogger(t))

	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id := gw.LastRequestID

	// Delete the conversation while the confirm call is in flight.
	gw.beforeConfirmReturn = func() {
		if err := store.Remove(id); err != nil {
			t.Errorf("Remove failed: %v", err)
		}
	}

	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if _, ok := store.Get(id); ok {
		t.Fatal("deleted conversation resurrected by the in-flight result")
	}
	if store.Len() != 0 {
		t.Errorf("store has %d conversations, want 0", store.Len())
	}

	snap := m.Snapshot()
	if snap.Phase != session.Idle || snap.ActiveID != "" {
		t.Errorf("snapshot = %+v, want Idle with no active reference", snap)
	}
}

func TestAskAnswerForDeletedConversationIsDropped(t *testing.T) {
	gw := &gatewayHooks{}
	store := testutil.NewStore(t)
	m := session.New(gw, store, testutil.NewLogger(t))

	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id := gw.LastRequestID
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	gw.beforeAskReturn = func() {
		if err := store.Remove(id); err != nil {
			t.Errorf("Remove failed: %v", err)
		}
	}

	if err := m.AskFollowUp(context.Background(), "why?"); err != nil {
		t.Fatalf("AskFollowUp failed: %v", err)
	}

	if _, ok := store.Get(id); ok {
		t.Fatal("deleted conversation resurrected by the in-flight answer")
	}
	if got := m.Snapshot().Phase; got != session.Idle {
		t.Errorf("phase = %v, want Idle after the active conversation vanished", got)
	}
}

func TestActiveWhileFollowUpInFlight(t *testing.T) {
	gw := &gatewayHooks{}
	store := testutil.NewStore(t)
	m := session.New(gw, store, testutil.NewLogger(t))

	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id := gw.LastRequestID
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	gw.beforeAskReturn = func() {
		close(entered)
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.AskFollowUp(context.Background(), "why?"); err != nil {
			t.Errorf("AskFollowUp failed: %v", err)
		}
	}()
	<-entered
	close(release)

	// Reads overlap the in-flight append; the race detector flags any
	// unsynchronized access to the shared conversation record.
	for i := 0; i < 200; i++ {
		if c := m.Active(); c != nil && c.ID != id {
			t.Fatalf("Active returned %q, want %q", c.ID, id)
		}
	}
	<-done

	conv, _ := store.Get(id)
	if len(conv.FollowUps) != 1 {
		t.Errorf("follow-ups = %d, want 1", len(conv.FollowUps))
	}
	if got := m.Snapshot().Phase; got != session.Complete {
		t.Errorf("phase = %v, want Complete", got)
	}
}

// blockingGateway parks Confirm until released, keeping the machine in a
// busy phase for as long as the test needs.
type blockingGateway struct {
	testutil.FakeGateway
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) Confirm(ctx context.Context, requestID string) (*conversation.Result, error) {
	close(g.entered)
	<-g.release
	return g.FakeGateway.Confirm(ctx, requestID)
}

func TestBusyPhaseRejectsOperations(t *testing.T) {
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	store := testutil.NewStore(t)
	m := session.New(gw, store, testutil.NewLogger(t))

	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id := gw.LastRequestID

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Confirm(context.Background()); err != nil {
			t.Errorf("Confirm failed: %v", err)
		}
	}()
	<-gw.entered

	// One call is outstanding; everything else is rejected locally, not
	// queued, with no gateway traffic and no store mutation.
	if err := m.Submit(context.Background(), "more bugs", "/repo"); !errors.Is(err, session.ErrBusy) {
		t.Errorf("Submit while busy = %v, want ErrBusy", err)
	}
	if err := m.Confirm(context.Background()); !errors.Is(err, session.ErrBusy) {
		t.Errorf("Confirm while busy = %v, want ErrBusy", err)
	}
	if err := m.AskFollowUp(context.Background(), "why?"); !errors.Is(err, session.ErrBusy) {
		t.Errorf("AskFollowUp while busy = %v, want ErrBusy", err)
	}
	if err := m.Select(id); !errors.Is(err, session.ErrBusy) {
		t.Errorf("Select while busy = %v, want ErrBusy", err)
	}
	if gw.EstimateCalls != 1 || gw.AskCalls != 0 {
		t.Errorf("rejected operations reached the gateway: %d estimates, %d asks", gw.EstimateCalls, gw.AskCalls)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d conversations, want 1", store.Len())
	}

	close(gw.release)
	<-done

	if gw.ConfirmCalls != 1 {
		t.Errorf("confirm called %d times, want 1", gw.ConfirmCalls)
	}
	snap := m.Snapshot()
	if snap.Phase != session.Complete || snap.ActiveID != id {
		t.Errorf("snapshot = %+v, want Complete/%s", snap, id)
	}
}

func mustSubmit(t *testing.T, m *session.Machine) {
	t.Helper()
	if err := m.Submit(context.Background(), "find bugs", "/repo"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := m.Snapshot().Phase; got != session.AwaitingConfirmation {
		t.Fatalf("phase after submit = %v, want AwaitingConfirmation", got)
	}
}
