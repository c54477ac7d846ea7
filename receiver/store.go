package receiver

import (
	"sync/atomic"
	"time"

	"github.com/jd3nn1s/obdlink/telemetry"
)

// Snapshot is an immutable published record.
type Snapshot struct {
	Record     telemetry.Record
	ReceivedAt time.Time
}

// IsStale checks the snapshot's own receive time, so the record and its
// staleness always come from the same frame.
func (s Snapshot) IsStale(now time.Time, timeout time.Duration) bool {
	return IsStale(s.ReceivedAt, now, timeout)
}

// Store holds the latest record. Publishing swaps in a whole new snapshot so
// readers never see a record that is half old and half new.
type Store struct {
	current atomic.Pointer[Snapshot]
}

func (s *Store) Publish(r telemetry.Record, at time.Time) {
	s.current.Store(&Snapshot{Record: r, ReceivedAt: at})
}

// Load returns the latest snapshot, false if nothing has been published.
func (s *Store) Load() (Snapshot, bool) {
	snap := s.current.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}
