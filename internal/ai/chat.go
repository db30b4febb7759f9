// Package ai provides chat clients for the coaching session.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrDisabled is returned by the client used when no provider is configured.
var ErrDisabled = errors.New("ai provider not configured")

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chatter sends a conversation and returns the assistant's reply.
type Chatter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// New builds the client named by opts.Provider. An empty provider or "none"
// yields a client that always returns ErrDisabled.
func New(opts Options) (Chatter, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "none":
		return Disabled{}, nil
	case "openai":
		var clientOpts []OpenAIOption
		if opts.BaseURL != "" {
			clientOpts = append(clientOpts, WithOpenAIBaseURL(opts.BaseURL))
		}
		if opts.Model != "" {
			clientOpts = append(clientOpts, WithOpenAIModel(opts.Model))
		}
		if opts.Timeout > 0 {
			clientOpts = append(clientOpts, WithOpenAITimeout(opts.Timeout))
		}
		return NewOpenAIClient(opts.APIKey, clientOpts...), nil
	case "ollama":
		var clientOpts []OllamaOption
		if opts.BaseURL != "" {
			clientOpts = append(clientOpts, WithOllamaBaseURL(opts.BaseURL))
		}
		if opts.Model != "" {
			clientOpts = append(clientOpts, WithOllamaModel(opts.Model))
		}
		if opts.Timeout > 0 {
			clientOpts = append(clientOpts, WithOllamaTimeout(opts.Timeout))
		}
		return NewOllamaClient(clientOpts...), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q (want none, openai or ollama)", opts.Provider)
	}
}

// Disabled is the Chatter used when no provider is configured.
type Disabled struct{}

// Chat always fails with ErrDisabled.
func (Disabled) Chat(context.Context, []Message) (string, error) {
	return "", ErrDisabled
}
