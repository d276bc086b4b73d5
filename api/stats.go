/*
stats.go - Statistics read endpoint

PURPOSE:
  Serves the current statistics snapshot to admin/HR callers. The endpoint
  never computes statistics itself and never triggers a refresh; it loads
  whatever the refresher last published and shapes the response.

ENDPOINTS:
  GET  /api/statistics                 Current snapshot + timing metadata
  GET  /api/statistics/updates         Long-poll for the next publish
  POST /api/admin/statistics/refresh   Manual recomputation (maintenance)

COLD START:
  If no snapshot has ever been computed, the endpoint reports 500 with a
  "not yet computed" message rather than fabricating a zero snapshot. The
  server performs one refresh at startup, so a deployed instance only hits
  this if that refresh failed.

SEE ALSO:
  - middleware.go: auth/role/rate-limit stages in front of these handlers
  - stats/holder.go: Snapshot reads
*/
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/warp/leave-engine/stats"
)

// StatsHandler serves the statistics snapshot.
type StatsHandler struct {
	Holder    *stats.Holder
	Refresher *stats.Refresher
}

// NewStatsHandler creates the statistics handler.
func NewStatsHandler(holder *stats.Holder, refresher *stats.Refresher) *StatsHandler {
	return &StatsHandler{Holder: holder, Refresher: refresher}
}

// GetStatistics returns the current snapshot with timing metadata.
func (h *StatsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ident, _ := IdentityFrom(r.Context())
	user := ""
	if ident != nil {
		user = ident.Name
	}

	snap, ok := h.Holder.Load()
	elapsed := time.Since(start)
	w.Header().Set("X-Response-Time", fmt.Sprintf("%dms", elapsed.Milliseconds()))

	if !ok {
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse{
			Error:          "Statistics unavailable",
			Message:        "no snapshot has been computed yet",
			ResponseTimeMS: elapsed.Milliseconds(),
		})
		return
	}

	writeJSON(w, http.StatusOK, StatisticsResponse{
		Snapshot: *snap,
		Meta: StatisticsMeta{
			ResponseTimeMS: elapsed.Milliseconds(),
			User:           user,
		},
	})
}

// ManualRefresh forces an immediate recomputation. Admin maintenance only.
func (h *StatsHandler) ManualRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Refresher.RefreshNow(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Refresh failed", err)
		return
	}

	snap, _ := h.Holder.Load()
	writeJSON(w, http.StatusOK, RefreshResponse{
		Status:        "ok",
		LastRefreshed: snap.LastRefreshed.Format(time.RFC3339),
	})
}

const (
	defaultAwaitTimeout = 30 * time.Second
	maxAwaitTimeout     = 120 * time.Second
)

// AwaitUpdate long-polls for the next snapshot publish. Responds 200 with the
// new last_refreshed on an update, 204 on timeout. Clients use this to
// invalidate their cache instead of waiting for the next poll interval.
func (h *StatsHandler) AwaitUpdate(w http.ResponseWriter, r *http.Request) {
	timeout := defaultAwaitTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	if timeout > maxAwaitTimeout {
		timeout = maxAwaitTimeout
	}

	updates, cancel := h.Holder.Subscribe()
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-updates:
		snap, _ := h.Holder.Load()
		writeJSON(w, http.StatusOK, UpdateNotification{
			LastRefreshed: snap.LastRefreshed.Format(time.RFC3339),
		})
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}
