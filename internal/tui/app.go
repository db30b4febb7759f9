// Package tui provides the interactive terminal UI for devcoach.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cleaver/open-dev-coach/internal/client"
	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/scheduler"
)

// refreshInterval keeps the check-in list current as check-ins fire.
const refreshInterval = 30 * time.Second

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// App is the main TUI application model.
type App struct {
	client       *client.Client
	tasks        []models.Task
	checkins     []models.Checkin
	current      *models.Task
	selectedIdx  int
	checkinIdx   int
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string
	prevMode     string
	outputTitle  string
	message      string
	filterIdx    int
	loading      bool
	daemonOnline bool
	zone         string
	suggestions  *Suggestions
}

// New creates a new TUI application.
func New(c *client.Client) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: add <task> | checkin <HH:MM|1h 30m> [text] | ask <question> | / for commands"
	ti.Focus()
	ti.CharLimit = models.MaxTaskDescription
	ti.Width = 80

	return &App{
		client:      c,
		input:       ti,
		viewport:    viewport.New(80, 20),
		mode:        modeTasks,
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchTasks(),
		a.fetchCheckins(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if model, cmd, handled := a.handleKey(msg); handled {
			return model, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width - 2
		a.viewport.Height = max(5, msg.Height-10)

	case tasksLoadedMsg:
		a.loading = false
		a.tasks = msg.tasks
		a.current = msg.current
		if a.selectedIdx >= len(a.tasks) {
			a.selectedIdx = max(0, len(a.tasks)-1)
		}
		a.daemonOnline = true

	case checkinsLoadedMsg:
		a.checkins = msg.checkins
		if a.checkinIdx >= len(a.checkins) {
			a.checkinIdx = max(0, len(a.checkins)-1)
		}

	case daemonStatusMsg:
		a.daemonOnline = msg.online
		if msg.zone != "" {
			a.zone = msg.zone
		}

	case tickMsg:
		return a, tea.Batch(a.fetchCheckins(), a.checkDaemon(), a.tickCmd())

	case commandResultMsg:
		a.message = msg.message
		return a, tea.Batch(a.fetchTasks(), a.fetchCheckins())

	case outputMsg:
		a.message = ""
		a.outputTitle = msg.title
		a.viewport.SetContent(msg.body)
		a.viewport.GotoTop()
		if a.mode != modeOutput {
			a.prevMode = a.mode
		}
		a.mode = modeOutput
		return a, a.fetchTasks()

	case errMsg:
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	if a.mode == modeOutput {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update input
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())
	a.suggestions.SetTasks(a.tasks)

	return a, tea.Batch(cmds...)
}

// handleKey processes navigation keys and single-key shortcuts. Shortcuts only
// apply while the input is empty so they never swallow typed text.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	typing := a.input.Value() != ""

	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit, true

	case "esc":
		if typing {
			a.input.SetValue("")
			a.suggestions.Update("")
			return a, nil, true
		}
		switch a.mode {
		case modeDetail:
			a.mode = modeTasks
		case modeOutput:
			a.mode = a.prevMode
			if a.mode == "" {
				a.mode = modeTasks
			}
		}
		return a, nil, true

	case "up":
		a.moveSelection(-1)
		return a, nil, true

	case "down":
		a.moveSelection(1)
		return a, nil, true

	case "tab":
		if a.suggestions.IsVisible() {
			a.acceptSuggestion()
			return a, nil, true
		}
		if a.mode == modeCheckins {
			a.mode = modeTasks
		} else {
			a.mode = modeCheckins
		}
		return a, a.fetchCheckins(), true

	case "enter":
		if a.suggestions.IsVisible() {
			a.acceptSuggestion()
			return a, nil, true
		}
		line := strings.TrimSpace(a.input.Value())
		if line != "" {
			a.input.SetValue("")
			a.suggestions.Update("")
			return a, a.executeCommand(line), true
		}
		if a.mode == modeTasks && len(a.tasks) > 0 {
			a.mode = modeDetail
		}
		return a, nil, true
	}

	if typing {
		return a, nil, false
	}

	switch msg.String() {
	case "k":
		a.moveSelection(-1)
	case "j":
		a.moveSelection(1)
	case "r":
		return a, tea.Batch(a.fetchTasks(), a.fetchCheckins(), a.checkDaemon()), true
	case "f":
		if a.mode == modeTasks {
			a.filterIdx = (a.filterIdx + 1) % len(filters)
			a.selectedIdx = 0
			return a, a.fetchTasks(), true
		}
		return a, nil, false
	case "s":
		return a, a.executeCommand("start"), true
	case "d":
		return a, a.executeCommand("done"), true
	case "h":
		return a, a.executeCommand("hold"), true
	case "x":
		return a, a.executeCommand("rm"), true
	case "g":
		return a, a.executeCommand("digest"), true
	default:
		return a, nil, false
	}
	return a, nil, true
}

func (a *App) moveSelection(delta int) {
	if a.suggestions.IsVisible() {
		if delta < 0 {
			a.suggestions.Prev()
		} else {
			a.suggestions.Next()
		}
		return
	}
	switch a.mode {
	case modeTasks, modeDetail:
		a.selectedIdx = clamp(a.selectedIdx+delta, 0, len(a.tasks)-1)
	case modeCheckins:
		a.checkinIdx = clamp(a.checkinIdx+delta, 0, len(a.checkins)-1)
	case modeOutput:
		if delta < 0 {
			a.viewport.LineUp(1)
		} else {
			a.viewport.LineDown(1)
		}
	}
}

func (a *App) acceptSuggestion() {
	selected := a.suggestions.Selected()
	if selected == nil {
		return
	}
	if selected.Type == "task" {
		for i, t := range a.tasks {
			if strings.HasPrefix(t.ID, selected.Text) {
				a.selectedIdx = i
				a.mode = modeTasks
				break
			}
		}
		a.input.SetValue("")
	} else {
		a.input.SetValue(selected.Text + " ")
		a.input.CursorEnd()
	}
	a.suggestions.Update(a.input.Value())
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("devcoach") + "  " + daemonStatus
	if a.zone != "" {
		header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(a.zone)
	}
	working := mutedStyle.Render("idle")
	if a.current != nil {
		working = lipgloss.NewStyle().Foreground(primaryColor).Render("▶ " + truncate(a.current.Description, 40))
	}
	header += "  " + working

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case modeTasks:
		filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
		b.WriteString(mutedStyle.Render(filterLabel) + "\n")
		b.WriteString(a.renderTaskList(contentHeight - 1))
	case modeCheckins:
		b.WriteString(mutedStyle.Render(" Scheduled check-ins") + "\n")
		b.WriteString(a.renderCheckins(contentHeight - 1))
	case modeDetail:
		b.WriteString(a.renderTaskDetail())
	case modeOutput:
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(" "+a.outputTitle) + "\n")
		b.WriteString(a.viewport.View())
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case modeTasks:
		status = fmt.Sprintf(" Tasks: %d | ↑↓:nav | Enter:details | s/d/h/x:start/done/hold/delete | f:filter | Tab:check-ins | Ctrl+C:quit", len(a.tasks))
	case modeCheckins:
		status = fmt.Sprintf(" Check-ins: %d | ↑↓:nav | x:remove | Tab:tasks | r:refresh | Ctrl+C:quit", len(a.checkins))
	case modeOutput:
		status = " ↑↓:scroll | Esc:back | Ctrl+C:quit"
	default:
		status = " Esc:back | Enter:command | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) selectedTask() *models.Task {
	if a.selectedIdx < 0 || a.selectedIdx >= len(a.tasks) {
		return nil
	}
	t := a.tasks[a.selectedIdx]
	return &t
}

func (a *App) selectedCheckin() *models.Checkin {
	if a.checkinIdx < 0 || a.checkinIdx >= len(a.checkins) {
		return nil
	}
	c := a.checkins[a.checkinIdx]
	return &c
}

func (a *App) fetchTasks() tea.Cmd {
	a.loading = true
	status := string(filters[a.filterIdx])
	return func() tea.Msg {
		ctx := context.Background()
		tasks, err := a.client.ListTasks(ctx, status)
		if err != nil {
			return errMsg{err}
		}
		current, err := a.client.CurrentTask(ctx)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks: tasks, current: current}
	}
}

func (a *App) fetchCheckins() tea.Cmd {
	return func() tea.Msg {
		checkins, err := a.client.ListCheckins(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return checkinsLoadedMsg{checkins}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		health, err := a.client.Health(context.Background())
		if health == nil {
			return daemonStatusMsg{online: false}
		}
		return daemonStatusMsg{online: err == nil && health.OK, zone: health.Timezone}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]
	rest := strings.Join(args, " ")

	// Resolve targets now so the command acts on what was selected when it was issued.
	task := a.selectedTask()
	checkin := a.selectedCheckin()
	onCheckins := a.mode == modeCheckins

	taskTarget := func() (string, bool) {
		if len(args) > 0 {
			id, err := a.client.ResolveTaskID(context.Background(), args[0])
			return id, err == nil
		}
		if task == nil {
			return "", false
		}
		return task.ID, true
	}

	return func() tea.Msg {
		ctx := context.Background()

		switch cmd {
		case "add":
			if rest == "" {
				return commandResultMsg{"Usage: add <description>"}
			}
			t, err := a.client.CreateTask(ctx, rest)
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{fmt.Sprintf("✓ Created task %s", shortID(t.ID))}

		case "start", "done", "hold":
			id, ok := taskTarget()
			if !ok {
				return commandResultMsg{"No task selected"}
			}
			var res *client.TransitionResult
			var err error
			switch cmd {
			case "start":
				res, err = a.client.StartTask(ctx, id)
			case "done":
				res, err = a.client.CompleteTask(ctx, id)
			default:
				res, err = a.client.HoldTask(ctx, id)
			}
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{"✓ " + res.Message}

		case "edit":
			if task == nil {
				return commandResultMsg{"No task selected"}
			}
			if rest == "" {
				return commandResultMsg{"Usage: edit <new description>"}
			}
			if _, err := a.client.UpdateTask(ctx, task.ID, rest); err != nil {
				return errMsg{err}
			}
			return commandResultMsg{"✓ Task updated"}

		case "rm", "delete":
			if onCheckins {
				if checkin == nil {
					return commandResultMsg{"No check-in selected"}
				}
				msg, err := a.client.RemoveCheckin(ctx, checkin.ID)
				if err != nil {
					return errMsg{err}
				}
				return commandResultMsg{"✓ " + msg}
			}
			id, ok := taskTarget()
			if !ok {
				return commandResultMsg{"No task selected"}
			}
			msg, err := a.client.DeleteTask(ctx, id)
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{"✓ " + msg}

		case "checkin":
			spec, desc := scheduler.SplitTimeSpec(args)
			if spec == "" {
				return commandResultMsg{"Usage: checkin <HH:MM|1h 30m> [description]"}
			}
			c, err := a.client.AddCheckin(ctx, spec, desc)
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{fmt.Sprintf("✓ Check-in scheduled for %s", c.ScheduledAt.Format("Mon 15:04"))}

		case "ask":
			if rest == "" {
				return commandResultMsg{"Usage: ask <question>"}
			}
			reply, err := a.client.Ask(ctx, rest)
			if err != nil {
				return errMsg{err}
			}
			return outputMsg{title: "Coach", body: reply}

		case "digest":
			summary, err := a.client.Digest(ctx)
			if err != nil {
				return errMsg{err}
			}
			return outputMsg{title: "Digest", body: summary}

		case "refresh":
			return commandResultMsg{"Refreshed"}

		case "q", "quit", "exit":
			return tea.Quit()

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: add, start, done, checkin, ask)", cmd)}
		}
	}
}
