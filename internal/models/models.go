// Package models defines the core domain types for devcoach.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusOnHold     TaskStatus = "on-hold"
	TaskStatusCompleted  TaskStatus = "completed"
)

// IsValid reports whether s is one of the known task statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusOnHold, TaskStatusCompleted:
		return true
	}
	return false
}

// MaxTaskDescription is the longest accepted task description, in characters.
const MaxTaskDescription = 1000

// Task represents a unit of work the user is tracking.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CheckinStatus represents the lifecycle state of a check-in.
type CheckinStatus string

const (
	CheckinStatusScheduled CheckinStatus = "scheduled"
	CheckinStatusSkipped   CheckinStatus = "skipped"
	CheckinStatusCompleted CheckinStatus = "completed"
	CheckinStatusCancelled CheckinStatus = "cancelled"
)

// IsValid reports whether s is one of the known check-in statuses.
func (s CheckinStatus) IsValid() bool {
	switch s {
	case CheckinStatusScheduled, CheckinStatusSkipped, CheckinStatusCompleted, CheckinStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether a check-in in status s can no longer fire.
func (s CheckinStatus) IsTerminal() bool {
	return s == CheckinStatusSkipped || s == CheckinStatusCompleted || s == CheckinStatusCancelled
}

// Checkin is a one-shot reminder scheduled for an absolute instant.
type Checkin struct {
	ID              string        `json:"id"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	Description     string        `json:"description,omitempty"`
	Status          CheckinStatus `json:"status"`
	LastTriggeredAt *time.Time    `json:"last_triggered_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
