package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/store"
	"github.com/cleaver/open-dev-coach/internal/timezone"
)

// ErrStopped is returned for commands sent to a scheduler that is not running.
var ErrStopped = errors.New("scheduler is not running")

// Receiver accepts fired check-ins. Deliver must not block.
type Receiver interface {
	Deliver(c models.Checkin) error
}

// Scheduler owns every armed check-in timer. Commands and timer fires are
// queued on a single inbox and applied one at a time by the loop goroutine.
type Scheduler struct {
	store    *store.Store
	raw      *store.Store // UTC view, used for timer bookkeeping
	tz       *timezone.Boundary
	receiver Receiver
	config   *Config

	inbox chan func()

	// timers is only touched by the loop goroutine, or before the loop starts
	// and after it exits.
	timers map[string]*time.Timer
	armed  atomic.Int64

	running atomic.Bool

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler. A nil receiver drops fired check-ins after
// marking them completed.
func New(s *store.Store, tz *timezone.Boundary, receiver Receiver, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:    s,
		raw:      s.UTC(),
		tz:       tz,
		receiver: receiver,
		config:   cfg,
		inbox:    make(chan func(), cfg.inboxSize()),
		timers:   make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start reconciles the store and then begins accepting commands. Overdue
// check-ins are skipped and every remaining scheduled check-in is armed
// before Start returns.
func (sch *Scheduler) Start(ctx context.Context) error {
	if sch.ctx.Err() != nil {
		return ErrStopped
	}
	if !sch.running.CompareAndSwap(false, true) {
		return errors.New("scheduler already started")
	}

	if err := sch.reconcile(ctx); err != nil {
		sch.running.Store(false)
		sch.stopTimers()
		return fmt.Errorf("reconcile checkins: %w", err)
	}

	sch.wg.Add(1)
	go sch.loop()
	log.Println("Scheduler started")
	return nil
}

// Stop cancels every armed timer and stops the loop. Scheduled records are
// left untouched for the next reconciliation.
func (sch *Scheduler) Stop() {
	sch.running.Store(false)
	sch.cancel()
	sch.wg.Wait()
	sch.stopTimers()
	log.Println("Scheduler stopped")
}

func (sch *Scheduler) loop() {
	defer sch.wg.Done()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case fn := <-sch.inbox:
			fn()
		}
	}
}

// call runs fn on the loop goroutine and waits for it to finish.
func (sch *Scheduler) call(ctx context.Context, fn func()) error {
	if !sch.running.Load() {
		return ErrStopped
	}

	done := make(chan struct{})
	msg := func() {
		defer close(done)
		fn()
	}

	select {
	case sch.inbox <- msg:
	case <-sch.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-sch.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reconcile skips check-ins that came due while the process was down and arms
// the rest.
func (sch *Scheduler) reconcile(ctx context.Context) error {
	now := sch.tz.Now()

	overdue, err := sch.raw.ListScheduledDueBefore(ctx, now)
	if err != nil {
		return err
	}
	for _, c := range overdue {
		log.Printf("Skipping overdue checkin %s (was due %s)", c.ID, c.ScheduledAt.Format(time.RFC3339))
	}

	skipped, err := sch.raw.MarkOverdueScheduledAsSkipped(ctx, now)
	if err != nil {
		return err
	}

	pending, err := sch.raw.ListCheckins(ctx, models.CheckinStatusScheduled)
	if err != nil {
		return err
	}
	for _, c := range pending {
		sch.arm(c.ID, c.ScheduledAt)
	}

	log.Printf("Scheduler reconciled: %d skipped, %d armed", skipped, len(pending))
	return nil
}

// Add parses timeSpec in the configured zone, persists a check-in and arms it.
// Nothing is armed unless the insert succeeds.
func (sch *Scheduler) Add(ctx context.Context, timeSpec, description string) (*models.Checkin, error) {
	var c *models.Checkin
	var err error
	if callErr := sch.call(ctx, func() { c, err = sch.add(ctx, timeSpec, description) }); callErr != nil {
		return nil, callErr
	}
	return c, err
}

func (sch *Scheduler) add(ctx context.Context, timeSpec, description string) (*models.Checkin, error) {
	localNow, err := sch.tz.LocalNow()
	if err != nil {
		return nil, err
	}
	// The parsed instant already carries the zone's offset, so intervals stay
	// exact across DST transitions.
	local, err := ParseTimeSpec(timeSpec, localNow)
	if err != nil {
		return nil, err
	}

	c, err := sch.raw.CreateCheckin(ctx, models.Checkin{ScheduledAt: local.UTC(), Description: description})
	if err != nil {
		return nil, err
	}

	sch.arm(c.ID, c.ScheduledAt)
	log.Printf("Checkin %s scheduled for %s", c.ID, c.ScheduledAt.Format(time.RFC3339))
	out := sch.localize(*c)
	return &out, nil
}

// List returns the scheduled check-ins, earliest first.
func (sch *Scheduler) List(ctx context.Context) ([]models.Checkin, error) {
	var list []models.Checkin
	var err error
	if callErr := sch.call(ctx, func() { list, err = sch.store.ListCheckins(ctx, models.CheckinStatusScheduled) }); callErr != nil {
		return nil, callErr
	}
	return list, err
}

// Remove cancels the check-in's timer and deletes the record. Once Remove
// returns the check-in will not fire.
func (sch *Scheduler) Remove(ctx context.Context, id string) error {
	var err error
	if callErr := sch.call(ctx, func() { err = sch.remove(ctx, id) }); callErr != nil {
		return callErr
	}
	return err
}

func (sch *Scheduler) remove(ctx context.Context, id string) error {
	timer, wasArmed := sch.timers[id]
	if wasArmed {
		timer.Stop()
		sch.disarm(id)
	}

	err := sch.store.DeleteCheckin(ctx, id)
	if err != nil && wasArmed && !errors.Is(err, models.ErrNotFound) {
		// Record is still there, keep it armed.
		if c, getErr := sch.raw.GetCheckin(ctx, id); getErr == nil && c.Status == models.CheckinStatusScheduled {
			sch.arm(c.ID, c.ScheduledAt)
		}
		return err
	}
	if err != nil {
		return err
	}

	log.Printf("Checkin %s removed", id)
	return nil
}

// arm registers a timer that queues a fire for id at the given instant.
func (sch *Scheduler) arm(id string, at time.Time) {
	delay := at.Sub(sch.tz.Now())
	if delay < 0 {
		delay = 0
	}
	if old, ok := sch.timers[id]; ok {
		old.Stop()
	}
	sch.timers[id] = time.AfterFunc(delay, func() { sch.enqueueFire(id) })
	sch.armed.Store(int64(len(sch.timers)))
}

func (sch *Scheduler) disarm(id string) {
	delete(sch.timers, id)
	sch.armed.Store(int64(len(sch.timers)))
}

func (sch *Scheduler) enqueueFire(id string) {
	select {
	case sch.inbox <- func() { sch.handleFire(id) }:
	case <-sch.ctx.Done():
	}
}

// handleFire delivers a due check-in and marks it completed. A record that
// was removed or already left the scheduled state is ignored.
func (sch *Scheduler) handleFire(id string) {
	sch.disarm(id)
	ctx := sch.ctx

	c, err := sch.raw.GetCheckin(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		log.Printf("Checkin %s fired after removal, ignoring", id)
		return
	}
	if err != nil {
		log.Printf("Error loading fired checkin %s: %v", id, err)
		return
	}
	if c.Status != models.CheckinStatusScheduled {
		return
	}

	log.Printf("Checkin %s fired: %s", c.ID, c.Description)
	if sch.receiver != nil {
		if err := sch.receiver.Deliver(sch.localize(*c)); err != nil {
			log.Printf("warn: deliver checkin %s: %v", c.ID, err)
		}
	}

	now := sch.tz.Now()
	completed := models.CheckinStatusCompleted
	if _, err := sch.raw.UpdateCheckin(ctx, id, store.CheckinUpdate{
		Status:          &completed,
		LastTriggeredAt: &now,
		CompletedAt:     &now,
	}); err != nil {
		log.Printf("Error completing checkin %s: %v", id, err)
	}
}

// localize converts a UTC record to the configured zone for delivery. It
// stays in UTC when the zone cannot be resolved.
func (sch *Scheduler) localize(c models.Checkin) models.Checkin {
	loc, err := sch.tz.Location()
	if err != nil {
		log.Printf("warn: %v; delivering checkin %s in UTC", err, c.ID)
		return c
	}
	c.ScheduledAt = c.ScheduledAt.In(loc)
	c.CreatedAt = c.CreatedAt.In(loc)
	c.UpdatedAt = c.UpdatedAt.In(loc)
	if c.LastTriggeredAt != nil {
		t := c.LastTriggeredAt.In(loc)
		c.LastTriggeredAt = &t
	}
	if c.CompletedAt != nil {
		t := c.CompletedAt.In(loc)
		c.CompletedAt = &t
	}
	return c
}

func (sch *Scheduler) stopTimers() {
	for id, timer := range sch.timers {
		timer.Stop()
		delete(sch.timers, id)
	}
	sch.armed.Store(0)
}

// Armed returns the number of armed timers.
func (sch *Scheduler) Armed() int {
	return int(sch.armed.Load())
}

// GetStats returns current scheduler statistics.
func (sch *Scheduler) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"running":    sch.running.Load(),
		"armed":      sch.Armed(),
		"inbox_size": cap(sch.inbox),
		"queued":     len(sch.inbox),
	}
}
