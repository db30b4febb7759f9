package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestTaskStatus_IsValid(t *testing.T) {
	tests := []struct {
		status TaskStatus
		valid  bool
	}{
		{TaskStatusPending, true},
		{TaskStatusInProgress, true},
		{TaskStatusOnHold, true},
		{TaskStatusCompleted, true},
		{TaskStatus(""), false},
		{TaskStatus("IN-PROGRESS"), false}, // case sensitive
		{TaskStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("TaskStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestCheckinStatus(t *testing.T) {
	tests := []struct {
		status   CheckinStatus
		valid    bool
		terminal bool
	}{
		{CheckinStatusScheduled, true, false},
		{CheckinStatusSkipped, true, true},
		{CheckinStatusCompleted, true, true},
		{CheckinStatusCancelled, true, true},
		{CheckinStatus("fired"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	err := fmt.Errorf("create: %w", NewValidationError("status", "unknown value %q", "x"))
	if !IsValidation(err) {
		t.Error("expected wrapped ValidationError to be detected")
	}
	if IsValidation(ErrNotFound) {
		t.Error("ErrNotFound is not a validation error")
	}
	if got := err.Error(); got != `create: invalid status: unknown value "x"` {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDownstreamError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &DownstreamError{Op: "ai chat", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected DownstreamError to unwrap to its cause")
	}
}
