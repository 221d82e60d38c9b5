// Package views provides TUI view components for the RepoLens application.
package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/repolens-dev/repolens/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// SubmitMsg is sent when the user submits the analysis form.
type SubmitMsg struct {
	Task     string
	RepoPath string
}

// OpenHistoryMsg signals that the user wants the conversation list.
type OpenHistoryMsg struct{}

// ============================================================================
// FormModel
// ============================================================================

// FormModel is the view model for the analysis request form: a repository
// path input and a task description textarea.
type FormModel struct {
	repoInput  textinput.Model
	taskInput  textarea.Model
	focusTask  bool
	submitting bool
	spinner    spinner.Model
	errText    string
	width      int
	height     int
}

// NewFormModel creates a FormModel with empty inputs.
func NewFormModel(width, height int) FormModel {
	ri := textinput.New()
	ri.Placeholder = "/path/to/repo"
	ri.Prompt = "Repository: "
	ri.Focus()

	ta := textarea.New()
	ta.Placeholder = "Describe the task, e.g. find bugs in the auth flow"
	ta.SetHeight(4)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	return FormModel{
		repoInput: ri,
		taskInput: ta,
		spinner:   sp,
		width:     width,
		height:    height,
	}
}

// Init returns the initial command for the form view.
func (m FormModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// SetError displays a failure message under the form.
func (m FormModel) SetError(text string) FormModel {
	m.errText = text
	m.submitting = false
	return m
}

// SetSubmitting toggles the busy indicator.
func (m FormModel) SetSubmitting(on bool) FormModel {
	m.submitting = on
	if on {
		m.errText = ""
	}
	return m
}

// Update handles messages for the form view.
func (m FormModel) Update(msg tea.Msg) (FormModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch msg.String() {
		case tui.KeyTab:
			m.focusTask = !m.focusTask
			if m.focusTask {
				m.repoInput.Blur()
				cmds = append(cmds, m.taskInput.Focus())
			} else {
				m.taskInput.Blur()
				cmds = append(cmds, m.repoInput.Focus())
			}
			return m, tea.Batch(cmds...)

		case tui.KeyEnter:
			// Enter moves from the path input to the task; from the task
			// it submits (Ctrl+J inserts a newline there).
			if !m.focusTask {
				m.focusTask = true
				m.repoInput.Blur()
				return m, m.taskInput.Focus()
			}
			task := strings.TrimSpace(m.taskInput.Value())
			repo := strings.TrimSpace(m.repoInput.Value())
			if task == "" || repo == "" {
				m.errText = "Both repository path and task are required."
				return m, nil
			}
			m.submitting = true
			m.errText = ""
			return m, func() tea.Msg {
				return SubmitMsg{Task: task, RepoPath: repo}
			}

		case tui.KeyCtrlJ:
			if m.focusTask {
				m.taskInput.InsertString("\n")
			}
			return m, nil

		case tui.KeyEsc:
			return m, func() tea.Msg { return OpenHistoryMsg{} }
		}

	case spinner.TickMsg:
		if m.submitting {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	if !m.submitting {
		if m.focusTask {
			m.taskInput, cmd = m.taskInput.Update(msg)
		} else {
			m.repoInput, cmd = m.repoInput.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the form view.
func (m FormModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("New Analysis"))
	b.WriteString("\n\n")
	b.WriteString(m.repoInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.taskInput.View())
	b.WriteString("\n\n")

	if m.submitting {
		b.WriteString(m.spinner.View() + " Estimating cost...")
		b.WriteString("\n\n")
	} else if m.errText != "" {
		b.WriteString(tui.ErrorStyle.Render(m.errText))
		b.WriteString("\n\n")
	}

	b.WriteString(tui.DimStyle.Render("Enter: Submit · Tab: Switch field · Esc: History · Ctrl+C: Quit"))

	return tui.BoxStyle.Width(m.width - 4).Render(b.String())
}
