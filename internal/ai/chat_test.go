package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Providers(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, c)

	c, err = New(Options{Provider: "OpenAI", APIKey: "k", Model: "m", BaseURL: "http://x/v1/", Timeout: time.Second})
	require.NoError(t, err)
	oc, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "m", oc.model)
	assert.Equal(t, "http://x/v1", oc.baseURL)
	assert.Equal(t, time.Second, oc.client.Timeout)

	c, err = New(Options{Provider: "ollama"})
	require.NoError(t, err)
	lc, ok := c.(*OllamaClient)
	require.True(t, ok)
	assert.Equal(t, defaultOllamaModel, lc.model)

	_, err = New(Options{Provider: "clippy"})
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestOpenAIClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  keep going  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("secret", WithOpenAIBaseURL(srv.URL+"/v1"), WithOpenAIModel("test-model"))
	reply, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "coach"},
		{Role: RoleUser, Content: "how am I doing?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "keep going", reply)
}

func TestOpenAIClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", WithOpenAIBaseURL(srv.URL))
	c.initialDelay = time.Millisecond

	reply, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", WithOpenAIBaseURL(srv.URL))
	c.initialDelay = time.Millisecond

	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("").Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	assert.Error(t, err)
}

func TestOllamaClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "tiny", req.Model)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"nice work"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(WithOllamaBaseURL(srv.URL+"/"), WithOllamaModel("tiny"))
	reply, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "nice work", reply)
}

func TestOllamaClient_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOllamaClient(WithOllamaBaseURL(srv.URL))
	c.initialDelay = time.Millisecond

	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.Equal(t, int32(ollamaMaxRetries), atomic.LoadInt32(&calls))
}

func TestOllamaClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllamaClient(WithOllamaBaseURL(srv.URL))
	c.initialDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Chat(ctx, []Message{{Role: RoleUser, Content: "x"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
