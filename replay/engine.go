package replay

import (
	"context"
	"time"

	"github.com/replayctl/replayengine/printer"
)

// Replay is the public entry point. idx == -1 replays all configured
// sources in declaration order; otherwise only the given source index is
// replayed.
func (c *Context) Replay(idx int) error {
	c.mu.Lock()
	sourceCount := len(c.opts.Sources)
	loop := c.opts.Loop
	enableCache := c.opts.EnableCache
	c.mu.Unlock()

	if idx < -1 || idx >= sourceCount {
		return c.fail(configErrorf("source index %d out of range [0, %d)", idx, sourceCount))
	}
	if !c.running.CompareAndSwap(false, true) {
		return c.fail(stateErrorf("replay already running"))
	}
	c.abort.Store(false)

	indices := make([]int, 0, sourceCount)
	if idx == -1 {
		for i := 0; i < sourceCount; i++ {
			indices = append(indices, i)
		}
	} else {
		indices = append(indices, idx)
	}

	c.stats.reset()
	c.stats.setStart(time.Now())

	cacheEligible := enableCache && loop != 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.watchAbort(ctx, cancel)

	var pass uint32
	var finalErr error
passLoop:
	for loop == 0 || pass < loop {
		pass++
		for _, i := range indices {
			if c.abort.Load() {
				break passLoop
			}
			c.currentSrc.Store(int32(i))

			src, cleanup, err := c.buildSourceFor(i, pass, cacheEligible)
			if err != nil {
				finalErr = err
				break passLoop
			}

			stop, err := c.driveSource(ctx, i, src, pass, cacheEligible)
			cleanup()
			if err != nil {
				finalErr = err
				break passLoop
			}
			if stop {
				break passLoop
			}
		}
	}

	c.stats.setEnd(time.Now())
	c.running.Store(false)
	if finalErr != nil {
		return c.fail(finalErr)
	}
	return nil
}

// watchAbort cancels ctx (unblocking the sleep backend's early-wake path)
// as soon as the sticky abort flag is set, polling at the suspend interval.
func (c *Context) watchAbort(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(suspendPollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.abort.Load() {
				cancel()
				return
			}
		}
	}
}

// buildSourceFor constructs the effective packet source for source index i
// on the given pass: the cache variant if a prior pass already sealed it,
// otherwise the configured variant.
func (c *Context) buildSourceFor(i int, pass uint32, cacheEligible bool) (packetSource, func(), error) {
	if cacheEligible && c.cache.sealed(i) {
		return newCacheSource(c.cache.arenaFor(i)), func() {}, nil
	}

	c.mu.Lock()
	spec := c.opts.Sources[i]
	c.mu.Unlock()

	var src packetSource
	var err error
	switch spec.Kind {
	case SourceFilename:
		src, err = NewFileSource(spec.Filename)
	case SourceFD:
		src, err = NewFDSource(spec.FD)
	case SourceCache:
		src = newCacheSource(c.cache.arenaFor(i))
	default:
		return nil, func() {}, configErrorf("unknown source kind %d", spec.Kind)
	}
	if err != nil {
		return nil, func() {}, err
	}
	return src, func() { src.Close() }, nil
}

// driveSource implements the per-source driver loop. It returns stop=true
// when the entire replay should end early (abort or limit_send reached).
func (c *Context) driveSource(ctx context.Context, srcIdx int, src packetSource, pass uint32, cacheEligible bool) (bool, error) {
	c.mu.Lock()
	usePktHdrLen := c.opts.UsePktHdrLen
	mtu := c.opts.MTU
	limitSend := c.opts.LimitSend
	routing := c.opts.RoutingCache
	accurate := c.opts.Accurate
	speed := c.opts.Speed
	sleepAccel := c.opts.SleepAccelUs
	metrics := c.metrics
	c.mu.Unlock()

	sleeper, err := newSleepBackend(accurate)
	if err != nil {
		return false, err
	}
	timing := newTimingController(speed, sleepAccel)

	firstPassForThisSource := pass == 1
	teeIntoCache := cacheEligible && firstPassForThisSource

	packetIdx := 0
	for {
		if c.abort.Load() {
			return true, nil
		}
		for c.suspend.Load() {
			time.Sleep(suspendPollInterval())
			if c.abort.Load() {
				return true, nil
			}
		}

		// Checked before the next packet is even read, so limit_send=0
		// sends nothing: pkts_sent must never exceed limit_send at any
		// observation point after a send.
		if limitSend >= 0 && int64(c.stats.pktsSent.Load()) >= limitSend {
			if teeIntoCache {
				c.cache.seal(srcIdx)
			}
			return true, nil
		}

		rec, ok, err := src.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}

		length := rec.CapturedLength
		if usePktHdrLen && rec.OriginalLength > rec.CapturedLength {
			length = rec.OriginalLength
		}
		data := padTo(rec.Data, length)

		if mtu > 0 && uint32(length) > mtu {
			c.setWarn("packet %d on source %d exceeds configured MTU (%d > %d)", packetIdx, srcIdx, length, mtu)
			printer.Warningf("packet %d on source %d exceeds MTU (%d > %d)\n", packetIdx, srcIdx, length, mtu)
		}

		now := time.Now()
		target, err := timing.nextTarget(now, rec.Timestamp, length)
		if err != nil {
			return false, err
		}
		if !target.IsZero() && target.After(now) {
			if err := sleeper.SleepUntil(ctx, target); err != nil {
				return true, nil
			}
		}
		if c.abort.Load() {
			return true, nil
		}

		egressSel := routing.Route(packetIdx)
		if routing.Len() > 0 && len(c.opts.Sources) != 1 {
			// invariant 3: a routing cache is only meaningful for a single
			// source; ignore it rather than misroute.
			egressSel = Primary
		}

		handle := c.egressHandleFor(egressSel)
		if handle == nil {
			return false, ioErrorf("no egress open for %v", egressSel)
		}

		n, sendErr := handle.send(data)
		if sendErr != nil || n < len(data) {
			c.stats.recordFailed()
			if metrics != nil {
				metrics.IncFailed()
			}
		} else {
			c.stats.recordSent(n)
			if metrics != nil {
				metrics.AddSent(1, uint64(n))
			}
		}
		c.stats.setEnd(time.Now())

		if teeIntoCache {
			c.cache.append(srcIdx, rec.Timestamp, data)
		}

		packetIdx++
	}

	if teeIntoCache {
		c.cache.seal(srcIdx)
	}
	return false, nil
}

func (c *Context) egressHandleFor(e Egress) egressHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e == Secondary && c.intf2 != nil {
		return c.intf2
	}
	return c.intf1
}

// padTo returns data padded with zero bytes to length: when UsePktHdrLen is
// set and the original on-wire length exceeds what was captured, the
// transmitted frame is padded out to that original length.
func padTo(data []byte, length int) []byte {
	if len(data) >= length {
		return data[:length]
	}
	out := make([]byte, length)
	copy(out, data)
	return out
}
