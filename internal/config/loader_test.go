package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	_, ok := s.Get("timezone")
	assert.False(t, ok, "timezone has no default")

	listen, ok := s.Get("listen")
	assert.True(t, ok)
	assert.Equal(t, DefaultSettings().Listen, listen)

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, "none", settings.AI.Provider)
	assert.Equal(t, 60*time.Second, settings.AI.Timeout)
	assert.Equal(t, 20, settings.Session.HistorySize)
	assert.True(t, settings.Notify.Desktop)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `timezone: Europe/Berlin
ai:
  provider: ollama
  model: llama3.2
  timeout: 30s
notify:
  telegram_chat_id: 12345
digest:
  time: "18:00"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	tz, ok := s.Get("timezone")
	assert.True(t, ok)
	assert.Equal(t, "Europe/Berlin", tz)

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, "ollama", settings.AI.Provider)
	assert.Equal(t, 30*time.Second, settings.AI.Timeout)
	assert.Equal(t, int64(12345), settings.Notify.TelegramChatID)
	assert.Equal(t, "18:00", settings.Digest.Time)
	// Unset keys keep their defaults
	assert.Equal(t, 64, settings.Scheduler.InboxSize)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEVCOACH_TIMEZONE", "Asia/Tokyo")
	t.Setenv("DEVCOACH_AI_API_KEY", "sk-test")

	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	tz, ok := s.Get("timezone")
	assert.True(t, ok)
	assert.Equal(t, "Asia/Tokyo", tz)

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", settings.AI.APIKey)
}

func TestSet_PersistsAndIsVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, s.Set("timezone", "America/New_York"))
	require.NoError(t, s.Set("session.history_size", "8"))

	// Visible immediately
	tz, ok := s.Get("timezone")
	assert.True(t, ok)
	assert.Equal(t, "America/New_York", tz)

	// And after reload
	reloaded, err := Load(path)
	require.NoError(t, err)
	tz, _ = reloaded.Get("timezone")
	assert.Equal(t, "America/New_York", tz)
	settings, err := reloaded.Settings()
	require.NoError(t, err)
	assert.Equal(t, 8, settings.Session.HistorySize)
}

func TestSet_Validation(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	tests := []struct {
		key, value string
	}{
		{"nope", "x"},
		{"timezone", "Mars/Base"},
		{"ai.provider", "skynet"},
		{"ai.timeout", "soon"},
		{"ai.timeout", "-1s"},
		{"notify.desktop", "maybe"},
		{"notify.telegram_chat_id", "abc"},
		{"digest.time", "25:00"},
		{"scheduler.inbox_size", "0"},
		{"listen", " "},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := s.Set(tt.key, tt.value)
			assert.True(t, models.IsValidation(err), "expected ValidationError, got %v", err)
		})
	}

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "rejected values must not write the file")
}

func TestSet_ClearTimezone(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	require.NoError(t, s.Set("timezone", "Europe/Paris"))
	require.NoError(t, s.Set("timezone", ""))

	_, ok := s.Get("timezone")
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	keys := s.Keys()
	assert.Contains(t, keys, "timezone")
	assert.Contains(t, keys, "ai.provider")
	assert.IsIncreasing(t, keys)
}

func TestYAML_MasksSecrets(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Set("ai.api_key", "sk-very-secret"))

	out, err := s.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "sk-very-secret")
	assert.Contains(t, string(out), "********")
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# IANA zone")
	assert.Contains(t, string(data), "provider: none")

	s, err := Load(path)
	require.NoError(t, err)
	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)

	assert.Error(t, WriteDefault(path), "existing file must not be overwritten")
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Asia/Tokyo\n"), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	changed := make(chan struct{}, 1)
	stop, err := s.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("timezone: Europe/Paris\n"), 0644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	assert.Eventually(t, func() bool {
		tz, _ := s.Get("timezone")
		return tz == "Europe/Paris"
	}, 2*time.Second, 20*time.Millisecond)
}
