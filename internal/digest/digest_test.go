package digest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/store"
	"github.com/cleaver/open-dev-coach/internal/timezone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	title, body string
	err         error
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Notify(_ context.Context, title, body string) error {
	c.title, c.body = title, body
	return c.err
}

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"09:30", "30 9 * * *", false},
		{"00:00", "0 0 * * *", false},
		{"23:59", "59 23 * * *", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noon", "", true},
		{"1:2:3", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := buildDailySpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleDaily_UsesConfiguredZone(t *testing.T) {
	d := New(newTestStore(t), timezone.Fixed("Asia/Tokyo"), nil)
	d.Start()
	defer d.Stop()

	require.NoError(t, d.ScheduleDaily("07:15"))
	next := d.Next()
	require.False(t, next.IsZero())

	loc, _ := time.LoadLocation("Asia/Tokyo")
	local := next.In(loc)
	assert.Equal(t, 7, local.Hour())
	assert.Equal(t, 15, local.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestScheduleDaily_ReplacesAndRemoves(t *testing.T) {
	d := New(newTestStore(t), timezone.Fixed("UTC"), nil)
	d.Start()
	defer d.Stop()

	require.NoError(t, d.ScheduleDaily("08:00"))
	require.NoError(t, d.ScheduleDaily("18:30"))
	assert.Len(t, d.cron.Entries(), 1)
	assert.Equal(t, 18, d.Next().UTC().Hour())

	require.NoError(t, d.Reschedule())
	assert.Len(t, d.cron.Entries(), 1)

	require.NoError(t, d.ScheduleDaily(""))
	assert.Empty(t, d.cron.Entries())
	assert.True(t, d.Next().IsZero())

	assert.Error(t, d.ScheduleDaily("7pm"))
}

func TestSummary(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	active := mustTask(t, st, "Ship release")
	_, err := st.StartTask(ctx, active.ID)
	require.NoError(t, err)

	done := mustTask(t, st, "Review PR")
	_, err = st.CompleteTask(ctx, done.ID)
	require.NoError(t, err)

	held := mustTask(t, st, "Upgrade deps")
	_, err = st.HoldTask(ctx, held.ID)
	require.NoError(t, err)

	for i := 0; i < maxListed+2; i++ {
		mustTask(t, st, fmt.Sprintf("Backlog %d", i))
	}

	_, err = st.CreateCheckin(ctx, models.Checkin{ScheduledAt: time.Now().Add(time.Hour), Description: "stretch"})
	require.NoError(t, err)

	d := New(st, timezone.Fixed("UTC"), nil)
	summary, err := d.Summary(ctx)
	require.NoError(t, err)

	assert.Contains(t, summary, "7 pending, 1 on hold, 1 completed today")
	assert.Contains(t, summary, "Working on: Ship release (since ")
	assert.Contains(t, summary, "Completed today:\n  - Review PR")
	assert.Contains(t, summary, "On hold:\n  - Upgrade deps")
	assert.Contains(t, summary, "  ... and 2 more")
	assert.Contains(t, summary, "stretch")
}

func TestSummary_Empty(t *testing.T) {
	d := New(newTestStore(t), timezone.Fixed("UTC"), nil)
	summary, err := d.Summary(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary, "0 pending, 0 on hold, 0 completed today")
	assert.Contains(t, summary, "Working on: nothing")
	assert.NotContains(t, summary, "Next check-in")
}

func TestSend(t *testing.T) {
	n := &captureNotifier{}
	d := New(newTestStore(t), timezone.Fixed("UTC"), n)

	require.NoError(t, d.Send(context.Background()))
	assert.Equal(t, "Daily digest", n.title)
	assert.Contains(t, n.body, "Working on: nothing")

	n.err = errors.New("offline")
	err := d.Send(context.Background())
	var de *models.DownstreamError
	assert.ErrorAs(t, err, &de)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), timezone.Fixed("UTC"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustTask(t *testing.T, s *store.Store, description string) *models.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), description)
	require.NoError(t, err)
	return task
}
