package desktop

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type call struct {
	name string
	args []string
}

func recordingRunner(calls *[]call, err error) Runner {
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name: name, args: args})
		return err
	}
}

func TestIsAllowed(t *testing.T) {
	d := New()

	tests := []struct {
		cmd     string
		allowed bool
	}{
		{"notify-send", true},
		{"osascript", true},
		{"sh", false},
		{"rm", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if got := d.IsAllowed(tt.cmd); got != tt.allowed {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.cmd, got, tt.allowed)
			}
		})
	}
}

func TestNotify_Linux(t *testing.T) {
	var calls []call
	d := New(WithGOOS("linux"), WithRunner(recordingRunner(&calls, nil)))

	if err := d.Notify(context.Background(), "Check-in", "How is it going?"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(calls))
	}
	if calls[0].name != "notify-send" {
		t.Errorf("Expected notify-send, got %s", calls[0].name)
	}
	args := calls[0].args
	if args[len(args)-2] != "Check-in" || args[len(args)-1] != "How is it going?" {
		t.Errorf("Unexpected args %v", args)
	}
}

func TestNotify_DarwinQuotes(t *testing.T) {
	var calls []call
	d := New(WithGOOS("darwin"), WithRunner(recordingRunner(&calls, nil)))

	if err := d.Notify(context.Background(), `Say "hi"`, `a\b`); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if calls[0].name != "osascript" || calls[0].args[0] != "-e" {
		t.Fatalf("Unexpected command %v", calls[0])
	}
	script := calls[0].args[1]
	if !strings.Contains(script, `with title "Say \"hi\""`) {
		t.Errorf("Title not escaped: %s", script)
	}
	if !strings.Contains(script, `display notification "a\\b"`) {
		t.Errorf("Body not escaped: %s", script)
	}
}

func TestNotify_Unsupported(t *testing.T) {
	var calls []call
	d := New(WithGOOS("plan9"), WithRunner(recordingRunner(&calls, nil)))

	if d.Supported() {
		t.Error("plan9 should not be supported")
	}
	if err := d.Notify(context.Background(), "t", "b"); err == nil {
		t.Error("Expected error on unsupported platform")
	}
	if len(calls) != 0 {
		t.Errorf("Nothing should run on unsupported platform, got %v", calls)
	}
}

func TestNotify_RunnerError(t *testing.T) {
	var calls []call
	d := New(WithGOOS("linux"), WithRunner(recordingRunner(&calls, errors.New("no display"))))

	err := d.Notify(context.Background(), "t", "b")
	if err == nil || !strings.Contains(err.Error(), "no display") {
		t.Errorf("Expected runner error to surface, got %v", err)
	}
}

func TestName(t *testing.T) {
	if New().Name() != "desktop" {
		t.Errorf("Expected name 'desktop', got %s", New().Name())
	}
}
