package config

import "time"

// Settings is the typed view of the configuration file.
type Settings struct {
	Timezone  string          `mapstructure:"timezone" yaml:"timezone"`
	DBPath    string          `mapstructure:"db_path" yaml:"db_path"`
	Listen    string          `mapstructure:"listen" yaml:"listen"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Digest    DigestConfig    `mapstructure:"digest" yaml:"digest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
}

// AIConfig selects the chat provider.
type AIConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"`
	Model    string        `mapstructure:"model" yaml:"model"`
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NotifyConfig enables notification channels.
type NotifyConfig struct {
	Desktop        bool   `mapstructure:"desktop" yaml:"desktop"`
	TelegramToken  string `mapstructure:"telegram_token" yaml:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id" yaml:"telegram_chat_id"`
}

// DigestConfig schedules the daily task digest.
type DigestConfig struct {
	// Time is a local HH:MM; empty disables the digest.
	Time string `mapstructure:"time" yaml:"time"`
}

// SchedulerConfig tunes the check-in scheduler.
type SchedulerConfig struct {
	InboxSize int `mapstructure:"inbox_size" yaml:"inbox_size"`
}

// SessionConfig tunes the coaching session.
type SessionConfig struct {
	HistorySize int `mapstructure:"history_size" yaml:"history_size"`
}
