package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/cleaver/open-dev-coach/internal/models"
)

var (
	statusPending    = lipgloss.NewStyle().Foreground(warningColor)
	statusInProgress = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	statusOnHold     = lipgloss.NewStyle().Foreground(secondaryColor)
	statusCompleted  = lipgloss.NewStyle().Foreground(successColor)
)

var filters = []models.TaskStatus{
	"",
	models.TaskStatusPending,
	models.TaskStatusInProgress,
	models.TaskStatusOnHold,
	models.TaskStatusCompleted,
}

var filterNames = []string{"ALL", "PENDING", "ACTIVE", "ON HOLD", "DONE"}

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return statusPending.Render("○ PENDING")
	case models.TaskStatusInProgress:
		return statusInProgress.Render("◑ ACTIVE")
	case models.TaskStatusOnHold:
		return statusOnHold.Render("◐ ON HOLD")
	case models.TaskStatusCompleted:
		return statusCompleted.Render("● DONE")
	default:
		return string(status)
	}
}

func formatStatusPlain(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return "○"
	case models.TaskStatusInProgress:
		return "◑"
	case models.TaskStatusOnHold:
		return "◐"
	case models.TaskStatusCompleted:
		return "●"
	default:
		return "?"
	}
}

func (a *App) renderTaskList(height int) string {
	if a.loading && len(a.tasks) == 0 {
		return "\n  Loading tasks...\n"
	}
	if len(a.tasks) == 0 {
		return "\n  No tasks found. Type: add <description> to create one.\n"
	}

	lines := make([]string, 0, len(a.tasks))
	for i, task := range a.tasks {
		desc := truncate(task.Description, max(20, a.width-24))
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s  %s", formatStatusPlain(task.Status), shortID(task.ID), desc)))
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %s  %s", formatStatus(task.Status), mutedStyle.Render(shortID(task.ID)), desc)))
		}
	}
	return strings.Join(window(lines, a.selectedIdx, height), "\n")
}

// window limits lines to height, keeping selected roughly centred.
func window(lines []string, selected, height int) []string {
	if height <= 0 || len(lines) <= height {
		return lines
	}
	start := selected - height/2
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > len(lines) {
		end = len(lines)
		start = max(0, end-height)
	}
	return lines[start:end]
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
