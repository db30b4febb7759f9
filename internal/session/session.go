// Package session turns fired check-ins into coaching messages and holds the
// running conversation with the AI provider.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cleaver/open-dev-coach/internal/ai"
	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/notify"
	"github.com/cleaver/open-dev-coach/internal/store"
)

var (
	// ErrBusy is returned by Deliver when the inbox is full.
	ErrBusy = errors.New("session inbox is full")
	// ErrStopped is returned once the session has been stopped.
	ErrStopped = errors.New("session stopped")
)

const systemPrompt = `You are a concise, friendly productivity coach for a software developer.
Keep answers short and practical. When given task context, refer to the task by name.`

// Config defines the session configuration.
type Config struct {
	// HistorySize is the number of messages kept for conversation context.
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`
	// InboxSize is the number of fired check-ins buffered for processing.
	InboxSize int `yaml:"inbox_size" mapstructure:"inbox_size"`
	// Timeout bounds the AI call made for one check-in.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() *Config {
	return &Config{
		HistorySize: 20,
		InboxSize:   16,
		Timeout:     60 * time.Second,
	}
}

// Session receives fired check-ins and answers questions.
type Session struct {
	store    *store.Store
	chat     ai.Chatter
	notifier notify.Notifier
	config   *Config

	inbox chan models.Checkin

	mu      sync.Mutex
	history []ai.Message

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new session. A nil chat disables AI replies and a nil
// notifier logs messages only.
func New(s *store.Store, chat ai.Chatter, n notify.Notifier, cfg *Config) *Session {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = def.InboxSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if chat == nil {
		chat = ai.Disabled{}
	}
	if n == nil {
		n = notify.Log{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		store:    s,
		chat:     chat,
		notifier: n,
		config:   cfg,
		inbox:    make(chan models.Checkin, cfg.InboxSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing delivered check-ins.
func (s *Session) Start() {
	s.wg.Add(1)
	go s.loop()
	log.Println("Session started")
}

// Stop stops processing. Check-ins still queued are dropped; they are
// already marked completed.
func (s *Session) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Println("Session stopped")
}

// Deliver queues a fired check-in without blocking.
func (s *Session) Deliver(c models.Checkin) error {
	if s.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case s.inbox <- c:
		return nil
	default:
		return ErrBusy
	}
}

func (s *Session) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case c := <-s.inbox:
			s.handleCheckin(c)
		}
	}
}

// handleCheckin asks the AI for a check-in message and shows it. AI and
// notifier failures are logged; a fallback message is sent when the AI fails.
func (s *Session) handleCheckin(c models.Checkin) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	current, counts := s.taskContext(ctx)

	body, err := s.converse(ctx, checkinPrompt(c, current, counts))
	if err != nil {
		if !errors.Is(err, ai.ErrDisabled) {
			log.Printf("warn: %v", &models.DownstreamError{Op: "ai chat", Err: err})
		}
		body = fallbackMessage(c, current)
	}

	if err := s.notifier.Notify(ctx, "Check-in", body); err != nil {
		log.Printf("warn: %v", &models.DownstreamError{Op: "notify", Err: err})
	}
}

// taskContext reads the current task and status counts. Errors degrade to an
// empty context.
func (s *Session) taskContext(ctx context.Context) (*models.Task, map[models.TaskStatus]int) {
	if s.store == nil {
		return nil, nil
	}
	current, err := s.store.CurrentTask(ctx)
	if err != nil {
		log.Printf("warn: load current task: %v", err)
	}
	counts, err := s.store.CountTasksByStatus(ctx)
	if err != nil {
		log.Printf("warn: count tasks: %v", err)
	}
	return current, counts
}

// Ask sends a free-form question with the conversation history.
func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", models.NewValidationError("prompt", "is required")
	}
	if s.ctx.Err() != nil {
		return "", ErrStopped
	}
	return s.converse(ctx, prompt)
}

// converse runs one exchange. History is only extended when the AI answers.
func (s *Session) converse(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]ai.Message, 0, len(s.history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	messages = append(messages, s.history...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: prompt})

	reply, err := s.chat.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	s.history = append(s.history,
		ai.Message{Role: ai.RoleUser, Content: prompt},
		ai.Message{Role: ai.RoleAssistant, Content: reply},
	)
	if over := len(s.history) - s.config.HistorySize; over > 0 {
		s.history = append([]ai.Message(nil), s.history[over:]...)
	}
	return reply, nil
}

// History returns a copy of the conversation history.
func (s *Session) History() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Message(nil), s.history...)
}

// Reset clears the conversation history.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

func checkinPrompt(c models.Checkin, current *models.Task, counts map[models.TaskStatus]int) string {
	var b strings.Builder
	b.WriteString("Scheduled check-in")
	if c.Description != "" {
		fmt.Fprintf(&b, ": %s", c.Description)
	}
	b.WriteString("\n")

	if current != nil {
		fmt.Fprintf(&b, "Current task: %s", current.Description)
		if current.StartedAt != nil {
			fmt.Fprintf(&b, " (in progress since %s)", current.StartedAt.Format("Mon 15:04"))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Current task: none\n")
	}

	fmt.Fprintf(&b, "Pending tasks: %d, on hold: %d, completed: %d\n",
		counts[models.TaskStatusPending], counts[models.TaskStatusOnHold], counts[models.TaskStatusCompleted])
	b.WriteString("Write a short check-in message for me (two or three sentences).")
	return b.String()
}

func fallbackMessage(c models.Checkin, current *models.Task) string {
	msg := "Check-in"
	if c.Description != "" {
		msg += ": " + c.Description
	}
	if current != nil {
		msg += "\nCurrent task: " + current.Description
	}
	return msg
}
