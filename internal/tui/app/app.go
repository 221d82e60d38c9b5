// Package app wires the TUI views to the session machine and the
// conversation store: one root Bubble Tea model that swaps between the
// form, confirmation dialog, chat, and history views as the session's
// phase changes.
package app

import (
	"context"
	"errors"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/session"
	"github.com/repolens-dev/repolens/internal/tui"
	"github.com/repolens-dev/repolens/internal/tui/views"
)

var errNothingToCopy = errors.New("no recommendations to copy")

type view int

const (
	viewForm view = iota
	viewConfirm
	viewChat
	viewHistory
)

// App is the root TUI model.
type App struct {
	machine *session.Machine
	store   *conversation.Store

	view    view
	form    views.FormModel
	confirm views.ConfirmModel
	chat    views.ChatModel
	history views.HistoryModel

	width  int
	height int
}

// New creates the root model starting on the analysis form.
func New(machine *session.Machine, store *conversation.Store) *App {
	return &App{
		machine: machine,
		store:   store,
		view:    viewForm,
		form:    views.NewFormModel(80, 24),
		width:   80,
		height:  24,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.form.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == tui.KeyCtrlC {
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Every view tracks its own size; forward below.

	case views.SubmitMsg:
		a.form = a.form.SetSubmitting(true)
		return a, runOp(func() error {
			return a.machine.Submit(context.Background(), msg.Task, msg.RepoPath)
		})

	case views.DecisionMsg:
		if msg.Accepted {
			a.confirm = a.confirm.SetRunning(true)
			return a, runOp(func() error {
				return a.machine.Confirm(context.Background())
			})
		}
		if err := a.machine.Cancel(); err != nil {
			a.confirm = a.confirm.SetError(err.Error())
			return a, nil
		}
		a.openForm()
		return a, a.form.Init()

	case views.AskMsg:
		return a, runOp(func() error {
			return a.machine.AskFollowUp(context.Background(), msg.Question)
		})

	case views.CopyMsg:
		return a, a.copyRecommendations()

	case tui.CopiedMsg:
		if msg.Err != nil {
			a.chat = a.chat.SetError("Copy failed: " + msg.Err.Error())
		} else {
			a.chat = a.chat.SetNotice("Recommendations copied to clipboard.")
		}
		return a, nil

	case views.NewAnalysisMsg:
		a.machine.Reset()
		a.openForm()
		return a, a.form.Init()

	case views.OpenHistoryMsg:
		a.history = views.NewHistoryModel(a.store.List(), a.width, a.height)
		a.view = viewHistory
		return a, nil

	case views.SelectConversationMsg:
		if err := a.machine.Select(msg.ID); err != nil {
			a.history = a.history.SetError(selectError(err))
			return a, nil
		}
		return a, a.openChat(false)

	case views.DeleteConversationMsg:
		// The machine observes store deletions and drops its active
		// reference on its own.
		_ = a.store.Remove(msg.ID)
		a.history = a.history.SetConversations(a.store.List())
		return a, nil

	case tui.OpRejectedMsg:
		a.showError(msg.Err.Error())
		return a, nil

	case tui.MachineUpdatedMsg:
		return a, a.reconcile()
	}

	return a, a.forward(msg)
}

// View implements tea.Model.
func (a *App) View() string {
	switch a.view {
	case viewConfirm:
		return a.confirm.View()
	case viewChat:
		return a.chat.View()
	case viewHistory:
		return a.history.View()
	default:
		return a.form.View()
	}
}

// reconcile maps the machine's snapshot onto a view after an operation
// finished.
func (a *App) reconcile() tea.Cmd {
	snap := a.machine.Snapshot()

	switch snap.Phase {
	case session.AwaitingConfirmation:
		if a.view == viewConfirm {
			// A failed confirmation: estimate retained, show the error.
			a.confirm = a.confirm.SetError(snap.Err)
			return nil
		}
		a.confirm = views.NewConfirmModel(snap.Pending.Tokens, snap.Pending.CostUSD, a.width, a.height)
		a.view = viewConfirm
		return a.confirm.Init()

	case session.Complete:
		if snap.Err != "" && a.view == viewChat {
			// A failed follow-up: timeline unchanged, surface the error.
			a.chat = a.chat.SetError(snap.Err)
			return nil
		}
		return a.openChat(a.view == viewChat)

	case session.Idle:
		a.openForm()
		if snap.Err != "" {
			a.form = a.form.SetError(snap.Err)
		}
		return a.form.Init()
	}

	return nil
}

// openChat shows the active conversation. When refresh is true the
// existing chat keeps its input state and only the timeline is replaced.
func (a *App) openChat(refresh bool) tea.Cmd {
	conv := a.machine.Active()
	if conv == nil {
		a.openForm()
		return a.form.Init()
	}

	entries := conversation.History(conv)
	if refresh {
		a.chat = a.chat.SetEntries(entries)
		return nil
	}
	a.chat = views.NewChatModel(truncate(conv.Task, 40), entries, a.width, a.height)
	a.view = viewChat
	return a.chat.Init()
}

func (a *App) openForm() {
	a.form = views.NewFormModel(a.width, a.height)
	a.view = viewForm
}

// showError surfaces a locally rejected operation on whichever view is
// active.
func (a *App) showError(text string) {
	switch a.view {
	case viewForm:
		a.form = a.form.SetError(text)
	case viewConfirm:
		a.confirm = a.confirm.SetError(text)
	case viewChat:
		a.chat = a.chat.SetError(text)
	case viewHistory:
		a.history = a.history.SetError(text)
	}
}

// forward routes a message to the active view.
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.view {
	case viewForm:
		a.form, cmd = a.form.Update(msg)
	case viewConfirm:
		a.confirm, cmd = a.confirm.Update(msg)
	case viewChat:
		a.chat, cmd = a.chat.Update(msg)
	case viewHistory:
		a.history, cmd = a.history.Update(msg)
	}
	return cmd
}

func (a *App) copyRecommendations() tea.Cmd {
	conv := a.machine.Active()
	return func() tea.Msg {
		if conv == nil || conv.InitialResult == nil {
			return tui.CopiedMsg{Err: errNothingToCopy}
		}
		return tui.CopiedMsg{Err: clipboard.WriteAll(conv.InitialResult.Recommendations)}
	}
}

// runOp executes a machine operation off the UI goroutine. A returned
// error means the machine rejected the call locally; otherwise the
// snapshot carries the outcome.
func runOp(op func() error) tea.Cmd {
	return func() tea.Msg {
		if err := op(); err != nil {
			return tui.OpRejectedMsg{Err: err}
		}
		return tui.MachineUpdatedMsg{}
	}
}

func selectError(err error) string {
	return "Cannot resume: " + err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
