package gateway

import (
	"sync"
	"time"
)

// slidingWindow is a timestamp ring buffer enforcing a per-credential
// rate limit over a fixed trailing window. Stale
// entries are pruned on every arrival rather than on a timer, so an idle
// credential costs no background work.
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
	window     time.Duration
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{window: window}
}

// allow prunes timestamps before now-window, then admits the arrival if
// doing so would not push the count above limit. On rejection it
// returns the duration until the oldest timestamp ages out, which
// becomes the quota_exceeded retryAfterMs hint.
func (w *slidingWindow) allow(now time.Time, limit int) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}

	if len(w.timestamps)+1 > limit {
		retryAfter := w.timestamps[0].Add(w.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}

	w.timestamps = append(w.timestamps, now)
	return true, 0
}

// QuotaTracker holds one pair of sliding windows per tenant credential,
// sharded by tenant id so tenants never contend on each other's
// windows.
type QuotaTracker struct {
	mu       sync.Mutex
	schedule map[string]*slidingWindow
	cancel   map[string]*slidingWindow

	schedulePerMinute int
	cancelPerMinute   int
}

func NewQuotaTracker(schedulePerMinute, cancelPerMinute int) *QuotaTracker {
	if schedulePerMinute <= 0 {
		schedulePerMinute = 60
	}
	if cancelPerMinute <= 0 {
		cancelPerMinute = 60
	}
	return &QuotaTracker{
		schedule:          make(map[string]*slidingWindow),
		cancel:            make(map[string]*slidingWindow),
		schedulePerMinute: schedulePerMinute,
		cancelPerMinute:   cancelPerMinute,
	}
}

func (q *QuotaTracker) windowFor(bucket map[string]*slidingWindow, tenantID string) *slidingWindow {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := bucket[tenantID]
	if !ok {
		w = newSlidingWindow(time.Minute)
		bucket[tenantID] = w
	}
	return w
}

// AllowSchedule enforces the per-minute schedule-op quota.
func (q *QuotaTracker) AllowSchedule(tenantID string, now time.Time) (bool, time.Duration) {
	return q.windowFor(q.schedule, tenantID).allow(now, q.schedulePerMinute)
}

// AllowCancel enforces the per-minute cancel-op quota.
func (q *QuotaTracker) AllowCancel(tenantID string, now time.Time) (bool, time.Duration) {
	return q.windowFor(q.cancel, tenantID).allow(now, q.cancelPerMinute)
}
