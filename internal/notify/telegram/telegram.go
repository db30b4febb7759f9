// Package telegram sends notifications to a Telegram chat through a bot.
package telegram

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier implements notify.Notifier for a single Telegram chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

type options struct {
	endpoint string
	client   *http.Client
}

// Option configures the bot connection.
type Option func(*options)

// WithEndpoint overrides the Bot API endpoint format, e.g. for a local server.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// New authorizes the bot token and returns a notifier for chatID.
func New(token string, chatID int64, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}

	o := &options{
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, o.endpoint, o.client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] telegram bot authorized on account %s", api.Self.UserName)
	return &Notifier{api: api, chatID: chatID}, nil
}

// Name returns the notifier identifier.
func (n *Notifier) Name() string {
	return "telegram"
}

// Notify sends the title in bold followed by the body.
func (n *Notifier) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(body)))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
