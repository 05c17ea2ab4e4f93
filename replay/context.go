package replay

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Context is the per-run replay state: created by New, mutated through
// setters until Replay is entered, observed concurrently during replay by
// the restricted control API, destroyed by Close.
type Context struct {
	// ID is a per-context run identifier, useful for correlating log lines
	// and metrics across multiple concurrently embedded engines.
	ID uuid.UUID

	mu      sync.Mutex
	opts    Options
	egress  egressWrapper
	intf1   egressHandle
	intf2   egressHandle
	cache   *packetCache
	metrics MetricsSink

	running atomic.Bool
	abort   atomic.Bool
	suspend atomic.Bool

	stats      Stats
	lastErr    *ReplayError
	lastWarn   string
	currentSrc atomic.Int32
}

// New creates a fresh replay context.
func New() *Context {
	return &Context{
		ID:     uuid.New(),
		opts:   defaultOptions(),
		egress: egressImpl{},
		cache:  newPacketCache(),
	}
}

// Close releases egress handles and any acquired resources. It is safe to
// call more than once.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intf1 != nil {
		c.intf1.close()
		c.intf1 = nil
	}
	if c.intf2 != nil {
		c.intf2.close()
		c.intf2 = nil
	}
}

func (c *Context) setErr(err *ReplayError) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// fail records err as the context's last error before returning it, so
// Geterr() reflects whatever a fallible Context method most recently
// failed with. err may be nil, in which case fail is a no-op passthrough.
func (c *Context) fail(err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*ReplayError); ok {
		c.setErr(re)
		return re
	}
	c.setErr(wrapIOErr(err, "unclassified failure"))
	return err
}

func (c *Context) setWarn(format string, args ...interface{}) {
	c.mu.Lock()
	c.lastWarn = fmt.Sprintf(format, args...)
	c.mu.Unlock()
}

// Geterr returns the most recent error's message. Callers must treat the
// string as valid only immediately after a failing call.
func (c *Context) Geterr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Error()
}

// Getwarn returns the most recent warning message, per the same contract
// as Geterr.
func (c *Context) Getwarn() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWarn
}

// ---- Control surface (safe for concurrent observers) ----

func (c *Context) IsRunning() bool {
	return c.running.Load()
}

func (c *Context) IsSuspended() bool {
	return c.suspend.Load()
}

// Abort is level-triggered and sticky: once set it stays set until the next
// Replay call.
func (c *Context) Abort() {
	c.abort.Store(true)
	c.mu.Lock()
	intf1, intf2 := c.intf1, c.intf2
	c.mu.Unlock()
	// Mark the open egresses aborted so any later send fails fast; a write
	// already underway inside send() is not interrupted.
	if intf1 != nil {
		intf1.abort()
	}
	if intf2 != nil {
		intf2.abort()
	}
}

// Suspend sets the cooperative suspend flag and Restart clears it; either
// may be called any number of times.
func (c *Context) Suspend() {
	c.suspend.Store(true)
}

func (c *Context) Restart() {
	c.suspend.Store(false)
}

func (c *Context) GetStats() StatsSnapshot {
	return c.stats.snapshot()
}

// GetStartTime and GetEndTime expose the same timestamps carried in
// GetStats(), for callers that only need one field without copying the
// whole snapshot.
func (c *Context) GetStartTime() time.Time { return c.stats.snapshot().StartTime }
func (c *Context) GetEndTime() time.Time   { return c.stats.snapshot().EndTime }

func (c *Context) GetPktsSent() uint64  { return c.stats.pktsSent.Load() }
func (c *Context) GetBytesSent() uint64 { return c.stats.bytesSent.Load() }
func (c *Context) GetFailed() uint64    { return c.stats.failed.Load() }

func (c *Context) GetSourceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.opts.Sources)
}

func (c *Context) GetCurrentSource() int {
	return int(c.currentSrc.Load())
}
