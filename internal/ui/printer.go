// Package ui provides colored terminal output for the non-interactive CLI
// path, plus shared rendering of analysis results and history timelines.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/repolens-dev/repolens/internal/conversation"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	answerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
)

// Header prints a bold section header.
func Header(text string) {
	fmt.Println(headerStyle.Render(text))
}

// Success prints a success line.
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func Warn(format string, args ...any) {
	fmt.Println(warnStyle.Render(fmt.Sprintf(format, args...)))
}

// Dim prints a muted line.
func Dim(format string, args ...any) {
	fmt.Println(dimStyle.Render(fmt.Sprintf(format, args...)))
}

// FormatCost renders an estimate for display, e.g. "~5000 tokens ($0.12)".
func FormatCost(tokens int, costUSD float64) string {
	return fmt.Sprintf("~%d tokens ($%.2f)", tokens, costUSD)
}

// FormatResult renders an analysis result as indented text.
func FormatResult(res *conversation.Result) string {
	if res == nil {
		return dimStyle.Render("  (never confirmed)")
	}

	var b strings.Builder
	if len(res.Files) > 0 {
		b.WriteString("  Relevant files:\n")
		for _, f := range res.Files {
			b.WriteString("    - " + f + "\n")
		}
	}
	if res.Recommendations != "" {
		b.WriteString("  Recommendations:\n")
		b.WriteString(indent(res.Recommendations, "    "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHistory renders a conversation's reconciled timeline.
func FormatHistory(entries []conversation.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.Kind {
		case conversation.EntryInitial:
			b.WriteString(promptStyle.Render("Task: ") + e.Prompt + "\n")
			b.WriteString(FormatResult(e.Result) + "\n")
		case conversation.EntryFollowUp:
			b.WriteString(promptStyle.Render("Q: ") + e.Prompt + "\n")
			b.WriteString(answerStyle.Render("A: ") + e.Answer + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatConversationLine renders one row of the conversation listing.
func FormatConversationLine(c *conversation.Conversation) string {
	status := successStyle.Render("done")
	if !c.Confirmed() {
		status = warnStyle.Render("orphan")
	}

	task := c.Task
	if len(task) > 60 {
		task = task[:57] + "..."
	}

	return fmt.Sprintf("%s  %s  %s  %s  %s",
		ShortID(c.ID),
		status,
		c.CreatedAt.Local().Format(time.DateTime),
		dimStyle.Render(fmt.Sprintf("%d follow-ups", len(c.FollowUps))),
		task,
	)
}

// ShortID abbreviates a request id for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}
