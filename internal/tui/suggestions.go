package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/cleaver/open-dev-coach/internal/models"
)

// Suggestions provides autocomplete for commands and task references
type Suggestions struct {
	items        []SuggestionItem
	filtered     []SuggestionItem
	selectedIdx  int
	visible      bool
	prefix       string // "/" or "@"
	currentInput string
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command" or "task"
}

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "Create a new task", Type: "command"},
	{Text: "start", Description: "Start the selected task", Type: "command"},
	{Text: "done", Description: "Complete the selected task", Type: "command"},
	{Text: "hold", Description: "Put the selected task on hold", Type: "command"},
	{Text: "edit", Description: "Rename the selected task", Type: "command"},
	{Text: "rm", Description: "Delete the selected task or check-in", Type: "command"},
	{Text: "checkin", Description: "Schedule a check-in (HH:MM or 1h 30m)", Type: "command"},
	{Text: "ask", Description: "Ask the coach", Type: "command"},
	{Text: "digest", Description: "Show today's summary", Type: "command"},
	{Text: "refresh", Description: "Reload tasks and check-ins", Type: "command"},
	{Text: "quit", Description: "Exit", Type: "command"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{
		items:   commandSuggestions,
		visible: false,
	}
}

// Update updates suggestions based on current input
func (s *Suggestions) Update(input string) {
	s.currentInput = input
	switch {
	case strings.HasPrefix(input, "/") && !strings.Contains(input, " "):
		s.prefix = "/"
		s.items = commandSuggestions
		s.visible = true
		s.filter(strings.ToLower(strings.TrimPrefix(input, "/")))
	case strings.HasPrefix(input, "@"):
		if s.prefix != "@" {
			s.items = nil
		}
		s.prefix = "@"
		s.visible = true
		s.filter(strings.ToLower(strings.TrimPrefix(input, "@")))
	default:
		s.visible = false
		s.filtered = nil
		s.prefix = ""
	}
}

// SetTasks replaces the task reference suggestions
func (s *Suggestions) SetTasks(tasks []models.Task) {
	if s.prefix != "@" {
		return
	}
	s.items = make([]SuggestionItem, len(tasks))
	for i, t := range tasks {
		s.items[i] = SuggestionItem{
			Text:        shortID(t.ID),
			Description: truncate(t.Description, 40),
			Type:        "task",
		}
	}
	s.filter(strings.ToLower(strings.TrimPrefix(s.currentInput, "@")))
}

func (s *Suggestions) filter(query string) {
	if query == "" {
		s.filtered = s.items
		s.selectedIdx = 0
		return
	}

	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Text), query) ||
			strings.Contains(strings.ToLower(item.Description), query) {
			s.filtered = append(s.filtered, item)
		}
	}
	s.selectedIdx = 0
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(width - 4)

	activeStyle := lipgloss.NewStyle().
		Background(primaryColor).
		Foreground(fgColor).
		Bold(true)

	itemStyle := lipgloss.NewStyle().
		Foreground(fgColor)

	// Header
	header := "Commands"
	if s.prefix == "@" {
		header = "Tasks"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render(header))
	b.WriteString("\n")

	// Show max 5 suggestions
	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			more := len(s.filtered) - maxVisible
			b.WriteString(helpStyle.Render(fmt.Sprintf("  ... and %d more", more)))
			break
		}

		line := ""
		if i == s.selectedIdx {
			line = activeStyle.Render("▶ " + item.Text)
			if item.Description != "" {
				line += " " + activeStyle.Render(item.Description)
			}
		} else {
			line = itemStyle.Render("  " + item.Text)
			if item.Description != "" {
				line += " " + helpStyle.Render(item.Description)
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return suggestionStyle.Render(b.String())
}
