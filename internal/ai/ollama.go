package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.2"
	ollamaMaxRetries     = 5
	ollamaInitialDelay   = 1 * time.Second
)

// OllamaClient talks to a local Ollama server's /api/chat endpoint.
type OllamaClient struct {
	baseURL      string
	model        string
	client       *http.Client
	initialDelay time.Duration
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithOllamaBaseURL sets the server URL.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(c *OllamaClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithOllamaModel sets the model name.
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) { c.model = model }
}

// WithOllamaTimeout sets the per-request timeout.
func WithOllamaTimeout(d time.Duration) OllamaOption {
	return func(c *OllamaClient) { c.client.Timeout = d }
}

// NewOllamaClient creates a client for localhost:11434 unless overridden.
func NewOllamaClient(opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL:      defaultOllamaBaseURL,
		model:        defaultOllamaModel,
		client:       &http.Client{Timeout: 120 * time.Second},
		initialDelay: ollamaInitialDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ollamaChatRequest is the Ollama /api/chat request body.
type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// ollamaChatResponse is the non-streaming /api/chat response body.
type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Chat sends messages to /api/chat with streaming disabled.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}

	body, err := json.Marshal(ollamaChatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < ollamaMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("ollama request failed (is ollama running at %s?): %w", c.baseURL, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("ollama error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			// Model still loading or server overloaded
			if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var chatResp ollamaChatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if chatResp.Error != "" {
			return "", fmt.Errorf("ollama error: %s", chatResp.Error)
		}
		return strings.TrimSpace(chatResp.Message.Content), nil
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", ollamaMaxRetries, lastErr)
}
