/*
refresher.go - Coalescing snapshot refresh worker

PURPOSE:
  Drains refresh requests from the store's change hook and recomputes the
  snapshot. Multiple pending requests collapse into one execution: Schedule
  drops the signal if a refresh is already queued, so a burst of writes costs
  one recomputation, and a bulk statement costs exactly one Schedule call in
  the first place (the store fires its hook per statement, not per row).

FAILURE ISOLATION:
  A failed recomputation is logged and counted; the previous snapshot keeps
  being served. The triggering write has long since committed - Schedule is
  fire-and-forget and never reports errors back to the writer.

DESIGN:
  - Single worker goroutine owns all writes to the holder
  - Schedule never blocks (buffered signal channel, capacity 1)
  - RefreshNow serializes with the worker on refreshMu, for the manual
    maintenance trigger and startup initialization

USAGE:
  refresher := stats.NewRefresher(aggregator, holder)
  store.OnChange(func(string) { refresher.Schedule() })
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - store/sqlite: Fires the change hook once per mutating statement
  - holder.go: Atomic publication
*/
package stats

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Computer recomputes a snapshot. *Aggregator satisfies it; tests substitute
// their own.
type Computer interface {
	Compute(ctx context.Context, now time.Time) (*Snapshot, error)
}

// Refresher coalesces change notifications into snapshot recomputations.
type Refresher struct {
	computer Computer
	holder   *Holder

	pending chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex // serializes Start/Stop

	refreshMu sync.Mutex // at most one recomputation at a time
	refreshes atomic.Int64
	failures  atomic.Int64
}

// NewRefresher creates a refresher publishing to the given holder.
func NewRefresher(computer Computer, holder *Holder) *Refresher {
	return &Refresher{
		computer: computer,
		holder:   holder,
		pending:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Schedule requests a refresh. Never blocks: if a refresh is already pending
// the request coalesces into it. Safe to call from any goroutine, including
// before Start.
func (r *Refresher) Schedule() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Start launches the worker goroutine.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wg.Add(1)
	go r.run()
	log.Println("[Refresher] Started")
}

// Stop stops the worker and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()
	log.Println("[Refresher] Stopped")
}

func (r *Refresher) run() {
	defer r.wg.Done()

	for {
		select {
		case <-r.pending:
			if err := r.refresh(context.Background()); err != nil {
				// Stale snapshot keeps being served; the write that triggered
				// us already committed.
				log.Printf("[Refresher] Refresh failed, serving previous snapshot: %v", err)
			}
		case <-r.stop:
			return
		}
	}
}

// RefreshNow forces an immediate synchronous recomputation. Used by the
// operator maintenance endpoint and at startup; not part of normal flow.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	return r.refresh(ctx)
}

func (r *Refresher) refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	snap, err := r.computer.Compute(ctx, time.Now())
	if err != nil {
		r.failures.Add(1)
		return err
	}

	r.holder.Publish(snap)
	r.refreshes.Add(1)
	return nil
}

// Refreshes returns the number of successful recomputations.
func (r *Refresher) Refreshes() int64 {
	return r.refreshes.Load()
}

// Failures returns the number of failed recomputations.
func (r *Refresher) Failures() int64 {
	return r.failures.Load()
}
