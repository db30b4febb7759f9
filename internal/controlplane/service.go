// Package controlplane provides the HTTP API and service layer for devcoach.
package controlplane

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cleaver/open-dev-coach/internal/digest"
	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/scheduler"
	"github.com/cleaver/open-dev-coach/internal/session"
	"github.com/cleaver/open-dev-coach/internal/store"
	"github.com/cleaver/open-dev-coach/internal/timezone"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Service provides the control plane business logic.
type Service struct {
	store     *store.Store
	tz        *timezone.Boundary
	scheduler *scheduler.Scheduler
	session   *session.Session
	digest    *digest.Digest
}

// NewService creates a new control plane service. Session and digest may be nil.
func NewService(s *store.Store, tz *timezone.Boundary, sch *scheduler.Scheduler, sess *session.Session, dg *digest.Digest) *Service {
	return &Service{
		store:     s,
		tz:        tz,
		scheduler: sch,
		session:   sess,
		digest:    dg,
	}
}

// --- Task Operations ---

// CreateTask creates a new pending task.
func (s *Service) CreateTask(ctx context.Context, description string) (*models.Task, error) {
	return s.store.CreateTask(ctx, description)
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListTasks returns tasks, optionally filtered by status.
func (s *Service) ListTasks(ctx context.Context, status string) ([]models.Task, error) {
	return s.store.ListTasks(ctx, models.TaskStatus(status))
}

// CurrentTask returns the in-progress task or ErrNotFound.
func (s *Service) CurrentTask(ctx context.Context) (*models.Task, error) {
	task, err := s.store.CurrentTask(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("current task: %w", models.ErrNotFound)
	}
	return task, nil
}

// UpdateTask changes a task's description.
func (s *Service) UpdateTask(ctx context.Context, id, description string) (*models.Task, error) {
	return s.store.UpdateTaskDescription(ctx, id, description)
}

// StartTask makes id the active task and holds whatever was active before.
func (s *Service) StartTask(ctx context.Context, id string) (string, *models.Task, error) {
	res, err := s.store.StartTask(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return transitionMessage(res), res.Task, nil
}

// CompleteTask marks a task completed.
func (s *Service) CompleteTask(ctx context.Context, id string) (string, *models.Task, error) {
	task, err := s.store.CompleteTask(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return transitionMessage(&store.TransitionResult{Task: task}), task, nil
}

// HoldTask puts a task on hold.
func (s *Service) HoldTask(ctx context.Context, id string) (string, *models.Task, error) {
	task, err := s.store.HoldTask(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return transitionMessage(&store.TransitionResult{Task: task}), task, nil
}

// SetTaskStatus moves a task to any status.
func (s *Service) SetTaskStatus(ctx context.Context, id, status string) (string, *models.Task, error) {
	res, err := s.store.SetTaskStatus(ctx, id, models.TaskStatus(status))
	if err != nil {
		return "", nil, err
	}
	return transitionMessage(res), res.Task, nil
}

// transitionMessage describes a status change, naming any task put on hold by a start.
func transitionMessage(res *store.TransitionResult) string {
	var msg string
	switch res.Task.Status {
	case models.TaskStatusInProgress:
		msg = fmt.Sprintf("Started %q", res.Task.Description)
	case models.TaskStatusCompleted:
		msg = fmt.Sprintf("Completed %q", res.Task.Description)
	case models.TaskStatusOnHold:
		msg = fmt.Sprintf("Put %q on hold", res.Task.Description)
	default:
		msg = fmt.Sprintf("Set %q to %s", res.Task.Description, res.Task.Status)
	}
	if len(res.Held) > 0 {
		held := make([]string, 0, len(res.Held))
		for _, t := range res.Held {
			held = append(held, fmt.Sprintf("%q", t.Description))
		}
		msg += "; put " + strings.Join(held, ", ") + " on hold"
	}
	return msg
}

// DeleteTask removes a task unconditionally.
func (s *Service) DeleteTask(ctx context.Context, id string) (string, error) {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted task %s", id), nil
}

// --- Check-in Operations ---

// AddCheckin schedules a check-in from a time spec such as "09:30" or "1h 30m".
func (s *Service) AddCheckin(ctx context.Context, timeSpec, description string) (*models.Checkin, error) {
	return s.scheduler.Add(ctx, timeSpec, description)
}

// ListCheckins returns scheduled check-ins.
func (s *Service) ListCheckins(ctx context.Context) ([]models.Checkin, error) {
	return s.scheduler.List(ctx)
}

// RemoveCheckin cancels and deletes a check-in.
func (s *Service) RemoveCheckin(ctx context.Context, id string) (string, error) {
	if err := s.scheduler.Remove(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed check-in %s", id), nil
}

// --- Session Operations ---

// Ask sends a question to the coaching session.
func (s *Service) Ask(ctx context.Context, prompt string) (string, error) {
	if s.session == nil {
		return "", fmt.Errorf("session: %w", ErrUnavailable)
	}
	return s.session.Ask(ctx, prompt)
}

// Digest returns today's summary.
func (s *Service) Digest(ctx context.Context) (string, error) {
	if s.digest == nil {
		return "", fmt.Errorf("digest: %w", ErrUnavailable)
	}
	return s.digest.Summary(ctx)
}

// --- Health ---

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	DB       string `json:"db"`
	Version  string `json:"version"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Armed    int    `json:"armed"`
}

// Health reports whether the database is reachable.
func (s *Service) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		OK:       true,
		DB:       "ok",
		Version:  Version,
		Timezone: s.tz.Zone(),
		Armed:    s.scheduler.Armed(),
	}

	if now, err := s.tz.LocalNow(); err == nil {
		resp.Time = now.Format(time.RFC3339)
	} else {
		resp.Time = s.tz.Now().Format(time.RFC3339)
		resp.OK = false
	}

	if err := s.store.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = err.Error()
	}
	return resp
}
