package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	messages []map[string]string
	failSend bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"coach","username":"coach_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failSend {
				_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
				return
			}
			f.mu.Lock()
			f.messages = append(f.messages, map[string]string{
				"chat_id":    r.Form.Get("chat_id"),
				"text":       r.Form.Get("text"),
				"parse_mode": r.Form.Get("parse_mode"),
			})
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}
}

func newFakeNotifier(t *testing.T, fake *fakeBotAPI) *Notifier {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	n, err := New("123:abc", 42, WithEndpoint(srv.URL+"/bot%s/%s"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return n
}

func TestNotify_SendsHTMLMessage(t *testing.T) {
	fake := &fakeBotAPI{}
	n := newFakeNotifier(t, fake)

	err := n.Notify(context.Background(), "Check-in <3>", "Working on: A & B")
	require.NoError(t, err)

	require.Len(t, fake.messages, 1)
	msg := fake.messages[0]
	assert.Equal(t, "42", msg["chat_id"])
	assert.Equal(t, "HTML", msg["parse_mode"])
	assert.Equal(t, "<b>Check-in &lt;3&gt;</b>\nWorking on: A &amp; B", msg["text"])
}

func TestNotify_APIError(t *testing.T) {
	fake := &fakeBotAPI{failSend: true}
	n := newFakeNotifier(t, fake)

	err := n.Notify(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestNotify_CancelledContext(t *testing.T) {
	fake := &fakeBotAPI{}
	n := newFakeNotifier(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Notify(ctx, "t", "b"), context.Canceled)
	assert.Empty(t, fake.messages)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", 42)
	assert.Error(t, err)

	_, err = New("123:abc", 0)
	assert.Error(t, err)
}

func TestNew_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	_, err := New("bad", 42, WithEndpoint(srv.URL+"/bot%s/%s"))
	assert.Error(t, err)
}
