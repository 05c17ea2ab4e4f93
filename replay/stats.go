package replay

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is the live statistics record mutated only by the replay worker.
// Counters are atomics so StatsSnapshot can copy them out without taking a
// lock from the worker's perspective; a snapshot may race a concurrent
// increment by a count or two, which is fine for progress reporting.
type Stats struct {
	pktsSent  atomic.Uint64
	bytesSent atomic.Uint64
	failed    atomic.Uint64

	mu        sync.Mutex
	startTime time.Time
	endTime   time.Time
}

// StatsSnapshot is a copied-out view safe for concurrent external readers.
// Values observed here never exceed what the live Stats held at copy time,
// but a snapshot taken while the worker is still running may be stale by
// the time it's read; callers wanting exact values should snapshot again
// after IsRunning() is false.
type StatsSnapshot struct {
	PktsSent  uint64
	BytesSent uint64
	Failed    uint64
	StartTime time.Time
	EndTime   time.Time
}

func (s *Stats) reset() {
	s.pktsSent.Store(0)
	s.bytesSent.Store(0)
	s.failed.Store(0)
	s.mu.Lock()
	s.startTime = time.Time{}
	s.endTime = time.Time{}
	s.mu.Unlock()
}

func (s *Stats) setStart(t time.Time) {
	s.mu.Lock()
	s.startTime = t
	s.mu.Unlock()
}

func (s *Stats) setEnd(t time.Time) {
	s.mu.Lock()
	s.endTime = t
	s.mu.Unlock()
}

func (s *Stats) recordSent(n int) {
	s.pktsSent.Add(1)
	s.bytesSent.Add(uint64(n))
}

func (s *Stats) recordFailed() {
	s.failed.Add(1)
}

func (s *Stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	start, end := s.startTime, s.endTime
	s.mu.Unlock()
	return StatsSnapshot{
		PktsSent:  s.pktsSent.Load(),
		BytesSent: s.bytesSent.Load(),
		Failed:    s.failed.Load(),
		StartTime: start,
		EndTime:   end,
	}
}
