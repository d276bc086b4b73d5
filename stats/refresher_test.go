package stats_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/stats"
	"github.com/warp/leave-engine/store/sqlite"
)

// fakeComputer lets tests control recomputation timing and outcome.
type fakeComputer struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{} // if non-nil, Compute blocks until it closes
}

func (f *fakeComputer) Compute(_ context.Context, now time.Time) (*stats.Snapshot, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &stats.Snapshot{LastRefreshed: now.UTC()}, nil
}

func (f *fakeComputer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeComputer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestRefresher_RefreshNow(t *testing.T) {
	computer := &fakeComputer{}
	holder := stats.NewHolder()
	r := stats.NewRefresher(computer, holder)

	require.NoError(t, r.RefreshNow(context.Background()))

	_, ok := holder.Load()
	assert.True(t, ok)
	assert.Equal(t, int64(1), r.Refreshes())
}

func TestRefresher_CoalescesBurst(t *testing.T) {
	// GIVEN: A started refresher whose computation is blocked mid-flight
	// WHEN: Scheduling 100 refreshes during the in-flight computation
	// THEN: At most one more computation runs after the in-flight one

	gate := make(chan struct{})
	computer := &fakeComputer{gate: gate}
	holder := stats.NewHolder()
	r := stats.NewRefresher(computer, holder)
	r.Start()
	defer r.Stop()

	r.Schedule()
	// Let the worker pick up the first signal and block in Compute.
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 100; i++ {
		r.Schedule()
	}
	close(gate)

	require.Eventually(t, func() bool {
		return r.Refreshes() >= 1
	}, time.Second, 5*time.Millisecond)

	// Give any queued work time to drain, then assert the burst collapsed.
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, computer.callCount(), 2)
	assert.GreaterOrEqual(t, computer.callCount(), 1)
}

func TestRefresher_FailureKeepsPreviousSnapshot(t *testing.T) {
	// GIVEN: A holder already serving a snapshot
	// WHEN: The next recomputation fails
	// THEN: The previous snapshot stays published and the failure is counted

	computer := &fakeComputer{}
	holder := stats.NewHolder()
	r := stats.NewRefresher(computer, holder)

	require.NoError(t, r.RefreshNow(context.Background()))
	before, ok := holder.Load()
	require.True(t, ok)

	computer.setErr(errors.New("source unavailable"))
	err := r.RefreshNow(context.Background())
	require.Error(t, err)

	after, ok := holder.Load()
	require.True(t, ok)
	assert.Same(t, before, after)
	assert.Equal(t, int64(1), r.Failures())
	assert.Equal(t, int64(1), r.Refreshes())
}

func TestRefresher_ScheduleNeverBlocks(t *testing.T) {
	// No worker running; Schedule must still return immediately.
	r := stats.NewRefresher(&fakeComputer{}, stats.NewHolder())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			r.Schedule()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule blocked without a running worker")
	}
}

func TestRefresher_WriteSucceedsWhenRefreshFails(t *testing.T) {
	// GIVEN: A store wired to a refresher whose computation always fails
	// WHEN: Saving a record
	// THEN: The save succeeds; the failure only shows up in the refresher

	store := newTestStore(t)

	computer := &fakeComputer{err: errors.New("aggregation broken")}
	holder := stats.NewHolder()
	r := stats.NewRefresher(computer, holder)
	store.OnChange(func(string) { r.Schedule() })
	r.Start()
	defer r.Stop()

	err := store.SaveProfile(context.Background(), sqlite.Profile{
		ID: "e1", Name: "Alice", Role: sqlite.RoleEmployee,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return r.Failures() > 0
	}, time.Second, 5*time.Millisecond)

	_, ok := holder.Load()
	assert.False(t, ok)
}
