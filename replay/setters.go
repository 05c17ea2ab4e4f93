package replay

import (
	"io"

	"github.com/google/gopacket/layers"
)

// This file implements the configuration surface. All setters validate and
// store; none may be called once Replay is running. Only SetInterface,
// which touches shared egress handles, checks this and refuses; the other
// setters do not check.

// SetInterface opens an egress for the primary or secondary slot. If the
// other egress is already open, their link-layer types must match.
func (c *Context) SetInterface(primary bool, name string) error {
	if c.IsRunning() {
		return c.fail(stateErrorf("cannot set interface while replay is running"))
	}

	handle, err := c.egress.open(name, directionFor(primary))
	if err != nil {
		return c.fail(ioErrorf("failed to open interface %s: %v", name, err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	other := c.intf2
	if !primary {
		other = c.intf1
	}
	if other != nil && other.dlt() != handle.dlt() {
		handle.close()
		err := configErrorf("link-layer mismatch: %s is %s, %s is %s",
			name, handle.dlt(), other.name(), other.dlt())
		c.lastErr = err // c.mu already held; setErr would deadlock
		return err
	}

	if primary {
		if c.intf1 != nil {
			c.intf1.close()
		}
		c.intf1 = handle
		c.opts.Intf1Name = name
	} else {
		if c.intf2 != nil {
			c.intf2.close()
		}
		c.intf2 = handle
		c.opts.Intf2Name = name
	}
	return nil
}

func directionFor(primary bool) Direction {
	if primary {
		return ClientToServer
	}
	return ServerToClient
}

func (c *Context) linkType() layers.LinkType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intf1 != nil {
		return c.intf1.dlt()
	}
	if c.intf2 != nil {
		return c.intf2.dlt()
	}
	return layers.LinkTypeEthernet
}

func (c *Context) SetSpeedMode(mode SpeedMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Speed.Mode = mode
	return nil
}

func (c *Context) SetSpeedSpeed(v float32) error {
	if v < 0 {
		return c.fail(configErrorf("speed must be >= 0, got %v", v))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Speed.Value = v
	return nil
}

func (c *Context) SetSpeedPPSMulti(v int32) error {
	if v < 1 {
		return c.fail(configErrorf("pps_multi must be >= 1, got %v", v))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Speed.PPSMulti = v
	return nil
}

func (c *Context) SetLoop(n uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Loop = n
	return nil
}

func (c *Context) SetSleepAccel(us int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.SleepAccelUs = us
	return nil
}

func (c *Context) SetUsePktHdrLen(b bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.UsePktHdrLen = b
	return nil
}

func (c *Context) SetMTU(mtu int32) error {
	if mtu < 64 {
		return c.fail(configErrorf("mtu must be >= 64, got %v", mtu))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.MTU = uint32(mtu)
	return nil
}

func (c *Context) SetAccurate(kind SleepBackendKind) error {
	backend, err := newSleepBackend(kind)
	if err != nil {
		return c.fail(err)
	}
	if closer, ok := backend.(io.Closer); ok {
		closer.Close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Accurate = kind
	return nil
}

func (c *Context) SetFileCache(b bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.EnableCache = b
	return nil
}

func (c *Context) AddPcapFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.opts.addSource(SourceSpec{Kind: SourceFilename, Filename: path}); err != nil {
		c.lastErr = err.(*ReplayError) // c.mu already held; setErr would deadlock
		return err
	}
	return nil
}

func (c *Context) AddFD(fd int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.opts.addSource(SourceSpec{Kind: SourceFD, FD: fd}); err != nil {
		c.lastErr = err.(*ReplayError) // c.mu already held; setErr would deadlock
		return err
	}
	return nil
}

func (c *Context) SetLimitSend(n int64) error {
	if n < -1 {
		return c.fail(configErrorf("limit_send must be >= -1, got %v", n))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.LimitSend = n
	return nil
}

func (c *Context) SetTcpprepCache(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.opts.Sources) > 1 {
		err := configErrorf("routing cache requires at most one source, have %d", len(c.opts.Sources))
		c.lastErr = err // c.mu already held; setErr would deadlock
		return err
	}
	rc, err := ReadRoutingCache(path)
	if err != nil {
		if re, ok := err.(*ReplayError); ok {
			c.lastErr = re
		}
		return err
	}
	c.opts.RoutingCache = rc
	c.opts.Comment = rc.Comment
	return nil
}

func (c *Context) SetManualCallback(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.Speed.Mode != SpeedOneAtATime {
		err := stateErrorf("manual callback requires SpeedOneAtATime mode")
		c.lastErr = err // c.mu already held; setErr would deadlock
		return err
	}
	c.opts.Speed.ManualCallback = fn
	return nil
}
