package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cleaver/open-dev-coach/internal/config"
	"github.com/cleaver/open-dev-coach/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFlags(t *testing.T, api, cfg string) {
	t.Helper()
	oldAPI, oldCfg := apiAddr, configPath
	apiAddr, configPath = api, cfg
	t.Cleanup(func() { apiAddr, configPath = oldAPI, oldCfg })
}

func TestResolveAPIAddr(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	withFlags(t, "", path)
	assert.Equal(t, "http://127.0.0.1:7467", resolveAPIAddr())

	require.NoError(t, os.WriteFile(path, []byte("listen: 127.0.0.1:9000\n"), 0644))
	assert.Equal(t, "http://127.0.0.1:9000", resolveAPIAddr())

	withFlags(t, "https://coach.example:443", path)
	assert.Equal(t, "https://coach.example:443", resolveAPIAddr())
}

func TestBuildNotifier(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Notify.Desktop = false

	n := buildNotifier(settings)
	multi, ok := n.(notify.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 1)

	// Telegram without a chat id stays disabled.
	settings.Notify.TelegramToken = "123:abc"
	multi = buildNotifier(settings).(notify.Multi)
	assert.Len(t, multi, 1)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"daemon"},
		{"task", "add"}, {"task", "list"}, {"task", "current"}, {"task", "start"},
		{"task", "done"}, {"task", "hold"}, {"task", "status"}, {"task", "edit"}, {"task", "rm"},
		{"checkin", "add"}, {"checkin", "list"}, {"checkin", "rm"},
		{"ask"}, {"digest"},
		{"config", "get"}, {"config", "set"}, {"config", "show"}, {"config", "init"},
		{"tui"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
