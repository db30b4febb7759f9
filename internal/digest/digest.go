// Package digest sends a daily summary of tasks and upcoming check-ins.
package digest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/notify"
	"github.com/cleaver/open-dev-coach/internal/store"
	"github.com/cleaver/open-dev-coach/internal/timezone"
	"github.com/robfig/cron/v3"
)

// maxListed caps the tasks listed per section.
const maxListed = 5

// Digest wraps the cron job that sends the daily summary.
type Digest struct {
	store    *store.Store
	tz       *timezone.Boundary
	notifier notify.Notifier
	cron     *cron.Cron

	mu      sync.Mutex
	entry   cron.EntryID
	hasJob  bool
	timeStr string
}

// New creates a digest. Nothing is scheduled until ScheduleDaily is called.
func New(s *store.Store, tz *timezone.Boundary, n notify.Notifier) *Digest {
	if n == nil {
		n = notify.Log{}
	}
	return &Digest{
		store:    s,
		tz:       tz,
		notifier: n,
		cron:     cron.New(),
	}
}

// ScheduleDaily (re)registers the digest at timeStr (HH:MM) in the configured
// zone. An empty timeStr removes the job.
func (d *Digest) ScheduleDaily(timeStr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timeStr == "" {
		d.removeLocked()
		return nil
	}

	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return err
	}
	loc, err := d.tz.Location()
	if err != nil {
		return err
	}

	// Each entry carries its own zone so a timezone change only needs a reschedule.
	id, err := d.cron.AddFunc(fmt.Sprintf("CRON_TZ=%s %s", loc.String(), spec), d.run)
	if err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}

	d.removeLocked()
	d.entry = id
	d.hasJob = true
	d.timeStr = timeStr
	log.Printf("Daily digest scheduled at %s %s", timeStr, loc)
	return nil
}

// Reschedule re-registers the current job, picking up a changed timezone.
func (d *Digest) Reschedule() error {
	d.mu.Lock()
	timeStr := d.timeStr
	d.mu.Unlock()
	return d.ScheduleDaily(timeStr)
}

func (d *Digest) removeLocked() {
	if d.hasJob {
		d.cron.Remove(d.entry)
		d.hasJob = false
		d.timeStr = ""
	}
}

// Next returns the next run time, or the zero time when nothing is scheduled.
func (d *Digest) Next() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasJob {
		return time.Time{}
	}
	return d.cron.Entry(d.entry).Next
}

func (d *Digest) Start() {
	d.cron.Start()
}

func (d *Digest) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
}

func (d *Digest) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := d.Send(ctx); err != nil {
		log.Printf("warn: daily digest: %v", err)
	}
}

// Send builds the summary and delivers it through the notifier.
func (d *Digest) Send(ctx context.Context) error {
	summary, err := d.Summary(ctx)
	if err != nil {
		return err
	}
	if err := d.notifier.Notify(ctx, "Daily digest", summary); err != nil {
		return &models.DownstreamError{Op: "notify", Err: err}
	}
	return nil
}

// Summary renders the task overview for today in local time.
func (d *Digest) Summary(ctx context.Context) (string, error) {
	now, err := d.tz.LocalNow()
	if err != nil {
		return "", err
	}

	tasks, err := d.store.ListTasks(ctx, "")
	if err != nil {
		return "", err
	}
	checkins, err := d.store.ListCheckins(ctx, models.CheckinStatusScheduled)
	if err != nil {
		return "", err
	}

	var current *models.Task
	var pending, onHold, doneToday []models.Task
	for i := range tasks {
		t := tasks[i]
		switch t.Status {
		case models.TaskStatusInProgress:
			current = &t
		case models.TaskStatusPending:
			pending = append(pending, t)
		case models.TaskStatusOnHold:
			onHold = append(onHold, t)
		case models.TaskStatusCompleted:
			if t.CompletedAt != nil && sameDay(*t.CompletedAt, now) {
				doneToday = append(doneToday, t)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d pending, %d on hold, %d completed today\n",
		now.Format("Mon 2 Jan"), len(pending), len(onHold), len(doneToday))

	if current != nil {
		fmt.Fprintf(&b, "Working on: %s", current.Description)
		if current.StartedAt != nil {
			fmt.Fprintf(&b, " (since %s)", current.StartedAt.Format("15:04"))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Working on: nothing\n")
	}

	writeSection(&b, "Completed today", doneToday)
	writeSection(&b, "On hold", onHold)
	writeSection(&b, "Pending", pending)

	if len(checkins) > 0 {
		next := checkins[0]
		fmt.Fprintf(&b, "Next check-in: %s", next.ScheduledAt.Format("Mon 15:04"))
		if next.Description != "" {
			fmt.Fprintf(&b, " %s", next.Description)
		}
		if len(checkins) > 1 {
			fmt.Fprintf(&b, " (+%d more)", len(checkins)-1)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func writeSection(b *strings.Builder, title string, tasks []models.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for i, t := range tasks {
		if i == maxListed {
			fmt.Fprintf(b, "  ... and %d more\n", len(tasks)-maxListed)
			break
		}
		fmt.Fprintf(b, "  - %s\n", t.Description)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: minute hour dom month dow
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
