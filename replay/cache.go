package replay

import (
	"sync"
	"time"
)

// cacheRecord indexes one packet's bytes inside a sourceArena's shared
// buffer: an append-only arena rather than a linked chain of heap records.
type cacheRecord struct {
	ts     time.Time
	offset int
	length int
}

// sourceArena is the packet-memory cache for a single source index. Once
// sealed, it is immutable until the owning Context is closed.
type sourceArena struct {
	mu      sync.Mutex
	buf     []byte
	records []cacheRecord
	sealed  bool
}

// packetCache holds one sourceArena per source index.
type packetCache struct {
	mu     sync.Mutex
	arenas map[int]*sourceArena
}

func newPacketCache() *packetCache {
	return &packetCache{arenas: make(map[int]*sourceArena)}
}

func (c *packetCache) arenaFor(idx int) *sourceArena {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.arenas[idx]
	if !ok {
		a = &sourceArena{}
		c.arenas[idx] = a
	}
	return a
}

// sealed reports whether source idx's arena has completed a first pass and
// may be replayed from memory.
func (c *packetCache) sealed(idx int) bool {
	c.mu.Lock()
	a, ok := c.arenas[idx]
	c.mu.Unlock()
	if !ok {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealed
}

// append tees one received record into source idx's arena. It is a no-op
// once the arena is sealed, as when a later Replay call's first pass reads
// back an arena that an earlier call already sealed.
func (c *packetCache) append(idx int, ts time.Time, data []byte) {
	a := c.arenaFor(idx)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	off := len(a.buf)
	a.buf = append(a.buf, data...)
	a.records = append(a.records, cacheRecord{ts: ts, offset: off, length: len(data)})
}

func (c *packetCache) seal(idx int) {
	a := c.arenaFor(idx)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
}

// cacheSource replays a sealed arena's records in insertion order without
// any filesystem I/O.
type cacheSource struct {
	arena *sourceArena
	pos   int
}

func newCacheSource(a *sourceArena) *cacheSource {
	return &cacheSource{arena: a}
}

func (s *cacheSource) Next() (capturedRecord, bool, error) {
	s.arena.mu.Lock()
	defer s.arena.mu.Unlock()
	if s.pos >= len(s.arena.records) {
		return capturedRecord{}, false, nil
	}
	rec := s.arena.records[s.pos]
	s.pos++
	data := make([]byte, rec.length)
	copy(data, s.arena.buf[rec.offset:rec.offset+rec.length])
	return capturedRecord{
		Timestamp:      rec.ts,
		CapturedLength: rec.length,
		OriginalLength: rec.length,
		Data:           data,
	}, true, nil
}

func (s *cacheSource) Close() error { return nil }
