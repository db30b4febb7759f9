// Package client is the HTTP client for the devcoach daemon API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
)

// DefaultTimeout is the default timeout for API requests.
const DefaultTimeout = 10 * time.Second

// AskTimeout bounds /ask calls, which wait on the AI provider.
const AskTimeout = 2 * time.Minute

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client wraps HTTP calls to the devcoach API.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout used when the context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the daemon address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TransitionResult is the response of the task state machine endpoints.
type TransitionResult struct {
	Message string       `json:"message"`
	Task    *models.Task `json:"task"`
}

// HealthResponse matches the server's health response structure.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	DB       string `json:"db"`
	Version  string `json:"version"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Armed    int    `json:"armed"`
}

// --- Tasks ---

// ListTasks fetches tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, status string) ([]models.Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CurrentTask returns the in-progress task, or nil when there is none.
func (c *Client) CurrentTask(ctx context.Context) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/current", nil, &task); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a new task.
func (c *Client) CreateTask(ctx context.Context, description string) (*models.Task, error) {
	var task models.Task
	body := map[string]string{"description": description}
	if err := c.do(ctx, http.MethodPost, "/tasks", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask changes a task's description.
func (c *Client) UpdateTask(ctx context.Context, id, description string) (*models.Task, error) {
	var task models.Task
	body := map[string]string{"description": description}
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// StartTask makes a task the active one.
func (c *Client) StartTask(ctx context.Context, id string) (*TransitionResult, error) {
	return c.transition(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/start", nil)
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id string) (*TransitionResult, error) {
	return c.transition(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/complete", nil)
}

// HoldTask puts a task on hold.
func (c *Client) HoldTask(ctx context.Context, id string) (*TransitionResult, error) {
	return c.transition(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/hold", nil)
}

// SetTaskStatus moves a task to any status.
func (c *Client) SetTaskStatus(ctx context.Context, id, status string) (*TransitionResult, error) {
	body := map[string]string{"status": status}
	return c.transition(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id)+"/status", body)
}

func (c *Client) transition(ctx context.Context, method, path string, body interface{}) (*TransitionResult, error) {
	var res TransitionResult
	if err := c.do(ctx, method, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) (string, error) {
	return c.message(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id))
}

// --- Check-ins ---

// ListCheckins fetches scheduled check-ins.
func (c *Client) ListCheckins(ctx context.Context) ([]models.Checkin, error) {
	var checkins []models.Checkin
	if err := c.do(ctx, http.MethodGet, "/checkins", nil, &checkins); err != nil {
		return nil, err
	}
	return checkins, nil
}

// AddCheckin schedules a check-in.
func (c *Client) AddCheckin(ctx context.Context, timeSpec, description string) (*models.Checkin, error) {
	var checkin models.Checkin
	body := map[string]string{"time": timeSpec, "description": description}
	if err := c.do(ctx, http.MethodPost, "/checkins", body, &checkin); err != nil {
		return nil, err
	}
	return &checkin, nil
}

// RemoveCheckin cancels a check-in.
func (c *Client) RemoveCheckin(ctx context.Context, id string) (string, error) {
	return c.message(ctx, http.MethodDelete, "/checkins/"+url.PathEscape(id))
}

// --- Session ---

// Ask sends a question to the coach.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, AskTimeout)
		defer cancel()
	}
	var res struct {
		Reply string `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/ask", map[string]string{"prompt": prompt}, &res); err != nil {
		return "", err
	}
	return res.Reply, nil
}

// Digest fetches today's summary.
func (c *Client) Digest(ctx context.Context) (string, error) {
	var res struct {
		Summary string `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/digest", nil, &res); err != nil {
		return "", err
	}
	return res.Summary, nil
}

// Health checks the daemon. Unlike other calls it returns the parsed payload
// alongside the error on a non-200 response.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	status, data, err := c.raw(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := json.Unmarshal(data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	if status != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", status, health.DB)
	}
	return &health, nil
}

// --- ID resolution ---

// ResolveTaskID expands a unique id prefix to the full task id.
func (c *Client) ResolveTaskID(ctx context.Context, prefix string) (string, error) {
	tasks, err := c.ListTasks(ctx, "")
	if err != nil {
		return "", err
	}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return resolvePrefix("task", prefix, ids)
}

// ResolveCheckinID expands a unique id prefix to the full check-in id.
func (c *Client) ResolveCheckinID(ctx context.Context, prefix string) (string, error) {
	checkins, err := c.ListCheckins(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(checkins))
	for i, ch := range checkins {
		ids[i] = ch.ID
	}
	return resolvePrefix("check-in", prefix, ids)
}

func resolvePrefix(kind, prefix string, ids []string) (string, error) {
	var match string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", fmt.Errorf("%s id %q is ambiguous", kind, prefix)
			}
			match = id
		}
	}
	if match == "" {
		// Let the daemon report not-found for ids it may still know about.
		return prefix, nil
	}
	return match, nil
}

// --- Transport ---

func (c *Client) message(ctx context.Context, method, path string) (string, error) {
	var res struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, method, path, nil, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	status, data, err := c.raw(ctx, method, path, in)
	if err != nil {
		return err
	}

	if status >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return &APIError{Status: status, Message: e.Error}
		}
		return &APIError{Status: status, Message: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, in interface{}) (int, []byte, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}
