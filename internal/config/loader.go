// Package config loads devcoach settings from a YAML file and DEVCOACH_*
// environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. DEVCOACH_AI_API_KEY.
const EnvPrefix = "DEVCOACH"

// Store is a key/value view over the config file. Keys use dotted paths such
// as "ai.provider".
type Store struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// Load reads path (missing is fine) on top of the defaults.
func Load(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return &Store{v: v, path: path}, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("timezone", "")
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", d.AI.Timeout)
	v.SetDefault("notify.desktop", d.Notify.Desktop)
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)
	v.SetDefault("digest.time", "")
	v.SetDefault("scheduler.inbox_size", d.Scheduler.InboxSize)
	v.SetDefault("session.history_size", d.Session.HistorySize)
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value for key. Empty values count as absent.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.v.IsSet(key) {
		return "", false
	}
	val := s.v.GetString(key)
	if val == "" {
		return "", false
	}
	return val, true
}

// Keys returns every known key, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set validates value, stores it and writes the config file.
func (s *Store) Set(key, value string) error {
	validate, ok := validators[key]
	if !ok {
		return models.NewValidationError("key", "unknown config key %q", key)
	}
	if err := validate(value); err != nil {
		return models.NewValidationError(key, "%v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Settings decodes the current values into the typed struct.
func (s *Store) Settings() (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Settings
	if err := s.v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &out, nil
}

// YAML renders the effective configuration. Secrets are masked.
func (s *Store) YAML() ([]byte, error) {
	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}
	if settings.AI.APIKey != "" {
		settings.AI.APIKey = "********"
	}
	if settings.Notify.TelegramToken != "" {
		settings.Notify.TelegramToken = "********"
	}
	return yaml.Marshal(settings)
}

// Watch re-reads the file whenever it is written or replaced and then calls
// onChange. The returned stop func ends the watch.
func (s *Store) Watch(onChange func()) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	// Editors often replace the file, so watch the directory.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != filepath.Clean(s.path) ||
					e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					log.Printf("warn: reload config: %v", err)
					continue
				}
				log.Printf("Config changed: %s", e.Name)
				if onChange != nil {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("warn: config watcher: %v", err)
			}
		}
	}()

	return func() {
		w.Close()
		<-done
	}, nil
}

func (s *Store) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err != nil {
		return nil
	}
	return s.v.ReadInConfig()
}

var validators = map[string]func(string) error{
	"timezone": func(v string) error {
		if v == "" {
			return nil
		}
		_, err := time.LoadLocation(v)
		return err
	},
	"db_path": nonEmpty,
	"listen":  nonEmpty,
	"ai.provider": func(v string) error {
		switch strings.ToLower(v) {
		case "none", "openai", "ollama":
			return nil
		}
		return fmt.Errorf("want none, openai or ollama")
	},
	"ai.model":    anything,
	"ai.base_url": anything,
	"ai.api_key":  anything,
	"ai.timeout": func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil && d <= 0 {
			return fmt.Errorf("must be positive")
		}
		return err
	},
	"notify.desktop": func(v string) error {
		_, err := strconv.ParseBool(v)
		return err
	},
	"notify.telegram_token": anything,
	"notify.telegram_chat_id": func(v string) error {
		_, err := strconv.ParseInt(v, 10, 64)
		return err
	},
	"digest.time": func(v string) error {
		if v == "" {
			return nil
		}
		_, err := time.Parse("15:04", v)
		return err
	},
	"scheduler.inbox_size": positiveInt,
	"session.history_size": positiveInt,
}

func anything(string) error { return nil }

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}

func positiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
