package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Notify(context.Context, string, string) error {
	s.calls++
	return s.err
}

func TestMulti_CallsEveryNotifier(t *testing.T) {
	boom := errors.New("boom")
	first := &stubNotifier{name: "first", err: boom}
	second := &stubNotifier{name: "second"}

	err := Multi{first, second}.Notify(context.Background(), "t", "b")

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first: boom")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls, "a failing notifier must not stop the rest")
}

func TestMulti_NoErrors(t *testing.T) {
	assert.NoError(t, Multi{Log{}, &stubNotifier{name: "ok"}}.Notify(context.Background(), "t", "b"))
	assert.NoError(t, Multi{}.Notify(context.Background(), "t", "b"))
}
