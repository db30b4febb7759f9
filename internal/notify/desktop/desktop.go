// Package desktop shows notifications through the platform's notification tool.
package desktop

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// allowedCommands is the strict allowlist of executables this notifier runs.
var allowedCommands = map[string]bool{
	"notify-send": true,
	"osascript":   true,
}

// Runner executes a command.
type Runner func(ctx context.Context, name string, args ...string) error

// Desktop implements notify.Notifier for Linux and macOS desktops.
type Desktop struct {
	goos   string
	appID  string
	runner Runner
}

// Option configures a Desktop notifier.
type Option func(*Desktop)

// WithRunner replaces command execution, mostly for tests.
func WithRunner(r Runner) Option {
	return func(d *Desktop) { d.runner = r }
}

// WithGOOS overrides the detected operating system.
func WithGOOS(goos string) Option {
	return func(d *Desktop) { d.goos = goos }
}

// New creates a new desktop notifier.
func New(opts ...Option) *Desktop {
	d := &Desktop{
		goos:   runtime.GOOS,
		appID:  "devcoach",
		runner: execRunner,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the notifier identifier.
func (d *Desktop) Name() string {
	return "desktop"
}

// Supported reports whether the current platform has a notification command.
func (d *Desktop) Supported() bool {
	_, _, err := d.command("", "")
	return err == nil
}

// IsAllowed checks if a command is in the allowlist.
func (d *Desktop) IsAllowed(cmd string) bool {
	return allowedCommands[cmd]
}

// Notify shows title and body as a desktop notification.
func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	cmd, args, err := d.command(title, body)
	if err != nil {
		return err
	}
	if !d.IsAllowed(cmd) {
		return fmt.Errorf("command not allowed: %s", cmd)
	}
	if err := d.runner(ctx, cmd, args...); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func (d *Desktop) command(title, body string) (string, []string, error) {
	switch d.goos {
	case "linux", "freebsd", "openbsd":
		return "notify-send", []string{"--app-name", d.appID, title, body}, nil
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", appleScriptString(body), appleScriptString(title))
		return "osascript", []string{"-e", script}, nil
	default:
		return "", nil, fmt.Errorf("desktop notifications not supported on %s", d.goos)
	}
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func execRunner(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
