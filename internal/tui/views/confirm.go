package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/repolens-dev/repolens/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// DecisionMsg carries the user's answer to the confirmation dialog.
type DecisionMsg struct {
	Accepted bool
}

// ============================================================================
// ConfirmModel
// ============================================================================

// ConfirmModel is the cost confirmation dialog shown between estimation
// and execution.
type ConfirmModel struct {
	tokens   int
	costUSD  float64
	running  bool
	errText  string
	spinner  spinner.Model
	selected bool // true = Run highlighted, false = Cancel
	width    int
	height   int
}

// NewConfirmModel creates the dialog for a pending estimate.
func NewConfirmModel(tokens int, costUSD float64, width, height int) ConfirmModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	return ConfirmModel{
		tokens:   tokens,
		costUSD:  costUSD,
		spinner:  sp,
		selected: true,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the dialog.
func (m ConfirmModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetError shows a confirmation failure; the estimate stays on screen so
// the user can retry without re-estimating.
func (m ConfirmModel) SetError(text string) ConfirmModel {
	m.errText = text
	m.running = false
	return m
}

// SetRunning toggles the busy indicator while the analysis executes.
func (m ConfirmModel) SetRunning(on bool) ConfirmModel {
	m.running = on
	if on {
		m.errText = ""
	}
	return m
}

// Update handles messages for the dialog.
func (m ConfirmModel) Update(msg tea.Msg) (ConfirmModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.running {
			return m, nil
		}
		switch msg.String() {
		case "y":
			return m, decide(true)
		case "n", tui.KeyEsc:
			return m, decide(false)
		case "left", "right", tui.KeyTab:
			m.selected = !m.selected
			return m, nil
		case tui.KeyEnter:
			return m, decide(m.selected)
		}

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func decide(accepted bool) tea.Cmd {
	return func() tea.Msg {
		return DecisionMsg{Accepted: accepted}
	}
}

// View renders the dialog.
func (m ConfirmModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("Confirm Analysis"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Estimated cost: ~%d tokens ($%.2f)\n\n", m.tokens, m.costUSD))

	if m.running {
		b.WriteString(m.spinner.View() + " Running analysis...")
	} else {
		run := " Run "
		cancel := " Cancel "
		if m.selected {
			run = tui.SelectedStyle.Render("[ Run ]")
			cancel = tui.DimStyle.Render("  Cancel  ")
		} else {
			run = tui.DimStyle.Render("  Run  ")
			cancel = tui.SelectedStyle.Render("[ Cancel ]")
		}
		b.WriteString(run + "   " + cancel)
		if m.errText != "" {
			b.WriteString("\n\n")
			b.WriteString(tui.ErrorStyle.Render(m.errText))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(tui.DimStyle.Render("y: Run · n: Cancel · Enter: Choose"))

	return tui.BoxStyle.Width(m.width - 4).Render(b.String())
}
