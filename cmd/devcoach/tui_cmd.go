package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cleaver/open-dev-coach/internal/client"
	"github.com/cleaver/open-dev-coach/internal/config"
	"github.com/cleaver/open-dev-coach/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	c := newAPIClient()

	if !isDaemonRunning(c) {
		fmt.Println("devcoach daemon not running. Starting background service...")
		if err := startDaemon(c); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	app := tui.New(c)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning(c *client.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	health, err := c.Health(ctx)
	return err == nil && health.OK
}

func startDaemon(c *client.Client) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	daemonArgs := []string{"daemon", "--config", configPath}
	if apiAddr != "" {
		if u, err := url.Parse(c.BaseURL()); err == nil && u.Host != "" {
			daemonArgs = append(daemonArgs, "--listen", u.Host)
		}
	}

	if err := os.MkdirAll(config.DefaultDir(), 0755); err != nil {
		return err
	}
	logPath := filepath.Join(config.DefaultDir(), "daemon.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := exec.Command(exe, daemonArgs...)
	// Detach so the daemon survives the TUI exiting.
	configureDaemonProc(cmd)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ {
		if isDaemonRunning(c) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", c.BaseURL())
}
