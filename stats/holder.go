/*
holder.go - Atomic snapshot publication

PURPOSE:
  Owns the single live snapshot. One writer (the refresher) publishes complete
  snapshots; any number of readers load without coordination. Readers always
  see either the previous complete snapshot or the new complete one, never a
  mix, because publication is a single pointer swap.

LIFECYCLE:
  Created empty at startup. The first successful refresh initializes it; it is
  then only replaced in place, never torn down, for the process lifetime.
  Before the first publish, Load reports no snapshot (cold start).

SUBSCRIPTIONS:
  Subscribe returns a channel that receives a signal after each successful
  publish, so clients can refetch instead of waiting for their next poll.
  Delivery is best-effort: a slow subscriber misses intermediate publishes but
  always learns that something changed.
*/
package stats

import (
	"sync"
	"sync/atomic"
)

// Holder is the process-wide snapshot state.
type Holder struct {
	current atomic.Pointer[Snapshot]

	mu       sync.Mutex
	watchers map[chan struct{}]struct{}
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{watchers: make(map[chan struct{}]struct{})}
}

// Load returns the current snapshot, or false if none has been published yet.
func (h *Holder) Load() (*Snapshot, bool) {
	s := h.current.Load()
	return s, s != nil
}

// Publish swaps in a complete snapshot and signals subscribers. A snapshot
// older than the current one is dropped, keeping last_refreshed monotonic
// even if publishes race.
func (h *Holder) Publish(s *Snapshot) {
	for {
		prev := h.current.Load()
		if prev != nil && s.LastRefreshed.Before(prev.LastRefreshed) {
			return
		}
		if h.current.CompareAndSwap(prev, s) {
			break
		}
	}

	h.mu.Lock()
	for ch := range h.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe registers for publish signals. The returned cancel func must be
// called when done.
func (h *Holder) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.watchers, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}
