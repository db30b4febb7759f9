package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, models.Task{ID: "abc", Description: body["description"], Status: models.TaskStatusPending})
	})

	task, err := c.CreateTask(context.Background(), "Write docs")
	require.NoError(t, err)
	assert.Equal(t, "abc", task.ID)
	assert.Equal(t, "Write docs", task.Description)
}

func TestAPIErrorDecoding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description: is required"})
	})

	_, err := c.CreateTask(context.Background(), "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "description: is required", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestCurrentTask_None(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "current task: not found"})
	})

	task, err := c.CurrentTask(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestStartTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/abc/start", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": `Started "A"`,
			"task":    models.Task{ID: "abc", Status: models.TaskStatusInProgress},
		})
	})

	res, err := c.StartTask(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, `Started "A"`, res.Message)
	assert.Equal(t, models.TaskStatusInProgress, res.Task.Status)
}

func TestListTasks_StatusQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "on_hold", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, []models.Task{{ID: "a"}, {ID: "b"}})
	})

	tasks, err := c.ListTasks(context.Background(), "on_hold")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestHealth_Unhealthy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{OK: false, DB: "database is closed", Version: "dev"})
	})

	health, err := c.Health(context.Background())
	assert.Error(t, err)
	require.NotNil(t, health)
	assert.False(t, health.OK)
	assert.Equal(t, "database is closed", health.DB)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Digest(context.Background())
	assert.Error(t, err)
}

func TestResolvePrefix(t *testing.T) {
	ids := []string{"abc123", "abd456", "xyz789"}

	id, err := resolvePrefix("task", "abc", ids)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	id, err = resolvePrefix("task", "xyz789", ids)
	require.NoError(t, err)
	assert.Equal(t, "xyz789", id)

	_, err = resolvePrefix("task", "ab", ids)
	assert.ErrorContains(t, err, "ambiguous")

	id, err = resolvePrefix("task", "nope", ids)
	require.NoError(t, err)
	assert.Equal(t, "nope", id)
}
