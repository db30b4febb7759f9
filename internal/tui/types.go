package tui

import (
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
)

// View modes.
const (
	modeTasks    = "tasks"
	modeCheckins = "checkins"
	modeDetail   = "detail"
	modeOutput   = "output"
)

type tasksLoadedMsg struct {
	tasks   []models.Task
	current *models.Task
}

type checkinsLoadedMsg struct {
	checkins []models.Checkin
}

type daemonStatusMsg struct {
	online bool
	zone   string
}

type commandResultMsg struct {
	message string
}

// outputMsg opens the scrollable output pane.
type outputMsg struct {
	title string
	body  string
}

type errMsg struct {
	err error
}

type tickMsg time.Time
