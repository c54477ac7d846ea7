package receiver

import (
	"sync/atomic"
	"time"
)

const DefaultTimeout = 10 * time.Second

// IsStale reports whether more than timeout has passed since last. Exactly
// timeout is not yet stale.
func IsStale(last, now time.Time, timeout time.Duration) bool {
	return now.Sub(last) > timeout
}

// Monitor tracks when the last valid frame arrived, on the receiver's own
// clock. The sender timestamp is never used for this.
type Monitor struct {
	// nil until the first frame, kept as a time.Time so the monotonic
	// reading survives
	last atomic.Pointer[time.Time]
}

func (m *Monitor) MarkReceived(at time.Time) {
	m.last.Store(&at)
}

func (m *Monitor) LastReceived() (time.Time, bool) {
	last := m.last.Load()
	if last == nil {
		return time.Time{}, false
	}
	return *last, true
}

// IsStale is true when no frame has ever been received.
func (m *Monitor) IsStale(now time.Time, timeout time.Duration) bool {
	last, ok := m.LastReceived()
	if !ok {
		return true
	}
	return IsStale(last, now, timeout)
}
