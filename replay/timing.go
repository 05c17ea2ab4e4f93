package replay

import (
	"sync"
	"time"
)

// timingController computes the per-packet target emission time for one of
// the five pacing models. Multiplier, Mbps and PacketRate (at the start of
// each burst) compute targets as an absolute wall-clock deadline derived
// from firstPacketSentAt, never by accumulating sequential increments, so
// rounding error on one packet never carries into the next: each delay is
// computed from the absolute target wall-clock of packet i. TopSpeed,
// packets inside a burst, and a non-positive Mbps/PacketRate value target
// now; OneAtATime targets the moment the manual callback returns.
type timingController struct {
	spec       SpeedSpec
	sleepAccel time.Duration

	mu                sync.Mutex
	firstPacketSentAt time.Time
	firstPacketTS     time.Time
	lastPacketTS      time.Time
	bytesBeforePacket uint64
	packetsBeforePkt  uint64
}

func newTimingController(spec SpeedSpec, sleepAccelUs int32) *timingController {
	return &timingController{
		spec:       spec,
		sleepAccel: time.Duration(sleepAccelUs) * time.Microsecond,
	}
}

// nextTarget returns the absolute wall-clock time at which the packet with
// the given capture timestamp and transmit length should leave, given now.
// For SpeedOneAtATime, spec.ManualCallback is invoked (and must block until
// the caller may proceed); nextTarget returns an error if no callback is
// configured.
func (t *timingController) nextTarget(now time.Time, capTS time.Time, length int) (time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.firstPacketSentAt.IsZero() {
		t.firstPacketSentAt = now
		t.firstPacketTS = capTS
		t.lastPacketTS = capTS
		return now, nil
	}
	t.lastPacketTS = capTS

	var target time.Time
	switch t.spec.Mode {
	case SpeedMultiplier:
		k := t.spec.Value
		if k <= 0 {
			k = 1
		}
		deltaCapture := capTS.Sub(t.firstPacketTS)
		target = t.firstPacketSentAt.Add(time.Duration(float64(deltaCapture) / float64(k)))

	case SpeedMbps:
		r := float64(t.spec.Value) // Mbit/s
		if r <= 0 {
			target = now
			break
		}
		elapsedNeeded := (float64(t.bytesBeforePacket) * 8) / (r * 1e6) // seconds
		target = t.firstPacketSentAt.Add(time.Duration(elapsedNeeded * float64(time.Second)))

	case SpeedPacketRate:
		p := float64(t.spec.Value)
		m := t.spec.PPSMulti
		if m < 1 {
			m = 1
		}
		if p <= 0 {
			target = now
			break
		}
		if t.packetsBeforePkt%uint64(m) != 0 {
			// Mid-burst: no inter-packet gap.
			target = now
		} else {
			groupIndex := t.packetsBeforePkt / uint64(m)
			elapsedNeeded := float64(groupIndex*uint64(m)) / p
			target = t.firstPacketSentAt.Add(time.Duration(elapsedNeeded * float64(time.Second)))
		}

	case SpeedTopSpeed:
		target = now

	case SpeedOneAtATime:
		if t.spec.ManualCallback == nil {
			return time.Time{}, stateErrorf("OneAtATime speed mode requires a manual callback")
		}
		t.spec.ManualCallback()
		target = time.Now()

	default:
		target = now
	}

	t.bytesBeforePacket += uint64(length)
	t.packetsBeforePkt++

	if t.sleepAccel > 0 {
		target = target.Add(-t.sleepAccel)
	}
	return target, nil
}
