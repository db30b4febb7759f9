package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/timezone"
)

// TestParallelAddRemove drives the scheduler from many goroutines and checks
// the armed timers always match the scheduled records.
func TestParallelAddRemove(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	sch := New(s, timezone.Fixed("UTC"), nil, &Config{InboxSize: 4})
	if err := sch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sch.Stop()

	numWorkers := 10
	perWorker := 5

	var wg sync.WaitGroup
	errs := make(chan error, numWorkers*perWorker*2)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c, err := sch.Add(ctx, fmt.Sprintf("%dm", 10+j), fmt.Sprintf("worker %d #%d", worker, j))
				if err != nil {
					errs <- err
					continue
				}
				// Every worker removes its even entries
				if j%2 == 0 {
					if err := sch.Remove(ctx, c.ID); err != nil {
						errs <- err
					}
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error: %v", err)
	}

	list, err := s.ListCheckins(ctx, models.CheckinStatusScheduled)
	if err != nil {
		t.Fatalf("ListCheckins failed: %v", err)
	}

	want := numWorkers * (perWorker / 2)
	if len(list) != want {
		t.Errorf("Expected %d scheduled records, got %d", want, len(list))
	}
	if sch.Armed() != len(list) {
		t.Errorf("Armed timers (%d) do not match scheduled records (%d)", sch.Armed(), len(list))
	}
}
