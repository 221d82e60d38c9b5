package views

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// SelectConversationMsg is sent when the user picks a conversation to
// resume.
type SelectConversationMsg struct {
	ID string
}

// DeleteConversationMsg is sent when the user deletes a conversation.
type DeleteConversationMsg struct {
	ID string
}

// ============================================================================
// HistoryModel
// ============================================================================

// HistoryModel is the conversation list: every analysis thread this
// client has created, selectable for resumption.
type HistoryModel struct {
	conversations []*conversation.Conversation
	cursor        int
	errText       string
	width         int
	height        int
}

// NewHistoryModel creates the list view, most recent last (cursor starts
// there).
func NewHistoryModel(conversations []*conversation.Conversation, width, height int) HistoryModel {
	cursor := len(conversations) - 1
	if cursor < 0 {
		cursor = 0
	}
	return HistoryModel{
		conversations: conversations,
		cursor:        cursor,
		width:         width,
		height:        height,
	}
}

// SetConversations refreshes the list after a mutation.
func (m HistoryModel) SetConversations(conversations []*conversation.Conversation) HistoryModel {
	m.conversations = conversations
	if m.cursor >= len(conversations) {
		m.cursor = len(conversations) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

// SetError displays a selection failure (e.g. picking an orphan).
func (m HistoryModel) SetError(text string) HistoryModel {
	m.errText = text
	return m
}

// Update handles messages for the list view.
func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case tui.KeyUp, "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.errText = ""

		case tui.KeyDown, "j":
			if m.cursor < len(m.conversations)-1 {
				m.cursor++
			}
			m.errText = ""

		case tui.KeyEnter:
			if len(m.conversations) == 0 {
				return m, nil
			}
			id := m.conversations[m.cursor].ID
			return m, func() tea.Msg {
				return SelectConversationMsg{ID: id}
			}

		case "d":
			if len(m.conversations) == 0 {
				return m, nil
			}
			id := m.conversations[m.cursor].ID
			return m, func() tea.Msg {
				return DeleteConversationMsg{ID: id}
			}

		case tui.KeyEsc, "n":
			return m, func() tea.Msg { return NewAnalysisMsg{} }
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// View renders the list view.
func (m HistoryModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("Conversations"))
	b.WriteString("\n\n")

	if len(m.conversations) == 0 {
		b.WriteString(tui.DimStyle.Render("No conversations yet. Press n to start one."))
	}

	for i, c := range m.conversations {
		icon := tui.IconConfirmed
		if !c.Confirmed() {
			icon = tui.IconOrphan
		}

		task := c.Task
		if len(task) > 50 {
			task = task[:47] + "..."
		}

		line := fmt.Sprintf("%s %s  %s  %s",
			icon,
			c.CreatedAt.Local().Format(time.DateOnly),
			task,
			tui.DimStyle.Render(fmt.Sprintf("(%d follow-ups)", len(c.FollowUps))),
		)

		if i == m.cursor {
			b.WriteString(tui.SelectedStyle.Render("> "))
			b.WriteString(line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(tui.ErrorStyle.Render(m.errText))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(tui.DimStyle.Render("Enter: Resume · d: Delete · n/Esc: New analysis · Ctrl+C: Quit"))

	return tui.BoxStyle.Width(m.width - 4).Render(b.String())
}
