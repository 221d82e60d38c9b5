package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// AskMsg is sent when the user submits a follow-up question.
type AskMsg struct {
	Question string
}

// CopyMsg requests copying the analysis recommendations to the clipboard.
type CopyMsg struct{}

// NewAnalysisMsg signals that the user wants a fresh analysis form.
type NewAnalysisMsg struct{}

// ============================================================================
// ChatModel
// ============================================================================

// ChatModel is the view model for a completed conversation: the reconciled
// Q&A timeline in a viewport with a follow-up textarea underneath.
type ChatModel struct {
	title     string
	entries   []conversation.Entry
	textarea  textarea.Model
	viewport  viewport.Model
	isLoading bool
	notice    string
	errText   string
	spinner   spinner.Model
	width     int
	height    int
}

// NewChatModel creates a ChatModel for the given conversation timeline.
func NewChatModel(title string, entries []conversation.Entry, width, height int) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask a follow-up question... (Enter to send)"
	ta.CharLimit = 5000
	ta.SetWidth(width - 8)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	vpHeight := height - 14
	if vpHeight < 5 {
		vpHeight = 5
	}
	vpWidth := width - 8
	if vpWidth < 20 {
		vpWidth = 20
	}

	vp := viewport.New(vpWidth, vpHeight)
	vp.SetContent(formatEntries(entries))
	vp.GotoBottom()

	return ChatModel{
		title:    title,
		entries:  entries,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the chat view.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// SetEntries replaces the displayed timeline, e.g. after a follow-up
// answer arrived.
func (m ChatModel) SetEntries(entries []conversation.Entry) ChatModel {
	m.entries = entries
	m.viewport.SetContent(formatEntries(entries))
	m.viewport.GotoBottom()
	m.isLoading = false
	m.errText = ""
	return m
}

// SetError shows a follow-up failure; the timeline is unchanged.
func (m ChatModel) SetError(text string) ChatModel {
	m.errText = text
	m.isLoading = false
	return m
}

// SetNotice shows a transient status line, e.g. after a clipboard copy.
func (m ChatModel) SetNotice(text string) ChatModel {
	m.notice = text
	return m
}

// Update handles messages for the chat view.
func (m ChatModel) Update(msg tea.Msg) (ChatModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.notice = ""
		switch msg.String() {
		case tui.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			question := strings.TrimSpace(m.textarea.Value())
			if question == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.isLoading = true
			m.errText = ""
			return m, func() tea.Msg {
				return AskMsg{Question: question}
			}

		case tui.KeyCtrlJ:
			m.textarea.InsertString("\n")
			return m, nil

		case "ctrl+y":
			if !m.isLoading {
				return m, func() tea.Msg { return CopyMsg{} }
			}
			return m, nil

		case "ctrl+n":
			if !m.isLoading {
				return m, func() tea.Msg { return NewAnalysisMsg{} }
			}
			return m, nil

		case tui.KeyEsc:
			if !m.isLoading {
				return m, func() tea.Msg { return OpenHistoryMsg{} }
			}
			return m, nil
		}

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := msg.Height - 14
		if vpHeight < 5 {
			vpHeight = 5
		}
		vpWidth := msg.Width - 8
		if vpWidth < 20 {
			vpWidth = 20
		}

		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(vpWidth)
		m.viewport.SetContent(formatEntries(m.entries))
		return m, nil
	}

	if !m.isLoading {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the chat view.
func (m ChatModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render(fmt.Sprintf("Analysis: %s", m.title)))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")

	if m.isLoading {
		b.WriteString(fmt.Sprintf("%s Thinking...", m.spinner.View()))
		b.WriteString("\n\n")
		b.WriteString(tui.DimStyle.Render(m.textarea.View()))
	} else {
		if m.errText != "" {
			b.WriteString(tui.ErrorStyle.Render(m.errText))
			b.WriteString("\n\n")
		} else if m.notice != "" {
			b.WriteString(tui.SuccessStyle.Render(m.notice))
			b.WriteString("\n\n")
		}
		b.WriteString(m.textarea.View())
	}

	b.WriteString("\n\n")
	b.WriteString(tui.DimStyle.Render("Enter: Ask · Ctrl+Y: Copy recommendations · Ctrl+N: New analysis · Esc: History"))

	return tui.BoxStyle.Width(m.width - 4).Render(b.String())
}

// formatEntries formats the reconciled timeline for the viewport.
func formatEntries(entries []conversation.Entry) string {
	var b strings.Builder

	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.Kind {
		case conversation.EntryInitial:
			b.WriteString(tui.QuestionStyle.Render("Task: "))
			b.WriteString(e.Prompt)
			b.WriteString("\n")
			if e.Result == nil {
				b.WriteString(tui.DimStyle.Render("(never confirmed)"))
				continue
			}
			if len(e.Result.Files) > 0 {
				b.WriteString(tui.AnswerStyle.Render("Files: "))
				b.WriteString(strings.Join(e.Result.Files, ", "))
				b.WriteString("\n")
			}
			b.WriteString(tui.AnswerStyle.Render("Recommendations: "))
			b.WriteString(e.Result.Recommendations)
		case conversation.EntryFollowUp:
			b.WriteString(tui.QuestionStyle.Render("You: "))
			b.WriteString(e.Prompt)
			b.WriteString("\n")
			b.WriteString(tui.AnswerStyle.Render("RepoLens: "))
			b.WriteString(e.Answer)
		}
	}

	return b.String()
}
