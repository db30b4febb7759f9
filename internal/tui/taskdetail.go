package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	valueStyle = lipgloss.NewStyle().
			Foreground(fgColor)
)

func (a *App) renderTaskDetail() string {
	t := a.selectedTask()
	if t == nil {
		return "\n  No task selected.\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n  %s\n\n", lipgloss.NewStyle().Bold(true).Render(t.Description)))
	b.WriteString(renderField("ID", t.ID))
	b.WriteString(renderField("Status", formatStatus(t.Status)))
	if t.StartedAt != nil {
		b.WriteString(renderField("Started", formatTime(*t.StartedAt)))
	}
	if t.CompletedAt != nil {
		b.WriteString(renderField("Completed", formatTime(*t.CompletedAt)))
	}
	b.WriteString(renderField("Created", formatTime(t.CreatedAt)))
	b.WriteString(renderField("Updated", formatTime(t.UpdatedAt)))
	b.WriteString("\n  " + helpStyle.Render("s:start  d:done  h:hold  x:delete  edit <text>:rename  Esc:back") + "\n")
	return b.String()
}

func renderField(label, value string) string {
	return fmt.Sprintf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label+":")), valueStyle.Render(value))
}

func formatTime(t time.Time) string {
	return t.Format("Mon 2 Jan 15:04")
}
