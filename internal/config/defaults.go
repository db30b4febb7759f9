package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSettings returns the default configuration
func DefaultSettings() *Settings {
	return &Settings{
		DBPath: filepath.Join(DefaultDir(), "devcoach.db"),
		Listen: "127.0.0.1:7467",
		AI: AIConfig{
			Provider: "none",
			Timeout:  60 * time.Second,
		},
		Notify: NotifyConfig{
			Desktop: true,
		},
		Scheduler: SchedulerConfig{
			InboxSize: 64,
		},
		Session: SessionConfig{
			HistorySize: 20,
		},
	}
}

// DefaultDir returns the devcoach data directory, ~/.devcoach.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devcoach"
	}
	return filepath.Join(home, ".devcoach")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

var keyComments = map[string]string{
	"timezone":         "IANA zone for all displayed and entered times (empty = UTC)",
	"db_path":          "SQLite database file",
	"listen":           "Daemon API address",
	"ai":               "Chat provider for check-in messages and ask: none, openai or ollama",
	"api_key":          "Also read from DEVCOACH_AI_API_KEY",
	"notify":           "Notification channels",
	"telegram_chat_id": "Leave token empty to disable Telegram",
	"digest":           "Daily task digest at a local HH:MM (empty = off)",
	"scheduler":        "Queued commands and timer fires",
	"session":          "Messages kept as conversation context",
}

// WriteDefault writes a commented default configuration to path. An
// existing file is left alone.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	var doc yaml.Node
	if err := doc.Encode(DefaultSettings()); err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	doc.HeadComment = "devcoach configuration"
	annotate(&doc)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// annotate attaches keyComments to matching mapping keys at any depth.
func annotate(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if c, ok := keyComments[n.Content[i].Value]; ok {
				n.Content[i].HeadComment = c
			}
		}
	}
	for _, child := range n.Content {
		annotate(child)
	}
}
