package replay

import (
	"context"
	"time"
)

// sleepBackend realises the sleep-until-target contract shared by every
// pacing backend. SleepUntil returns when at least target has been reached,
// or sooner if ctx is cancelled, giving the driver loop a way to wake early
// on abort instead of only re-checking between packets.
type sleepBackend interface {
	SleepUntil(ctx context.Context, target time.Time) error
}

// newSleepBackend builds the backend selected by kind. Backends unavailable
// on the current GOOS/GOARCH return a Configuration error here rather than
// at every sleep call.
func newSleepBackend(kind SleepBackendKind) (sleepBackend, error) {
	switch kind {
	case AccurateGetTimeOfDay:
		return newGetTimeOfDayBackend(), nil
	case AccurateNanoSleep:
		return newNanoSleepBackend(), nil
	case AccurateSelect:
		return newSelectBackend(), nil
	case AccurateRdtsc:
		return newRdtscBackend()
	case AccurateIoPort:
		return newIoPortBackend()
	case AccurateAbsTime:
		return newAbsTimeBackend()
	default:
		return nil, configErrorf("unknown sleep backend %d", kind)
	}
}

// sleepInChunks is shared by backends that don't have a native way to wake
// early: it waits in bounded slices so ctx cancellation is observed
// promptly.
func sleepInChunks(ctx context.Context, until time.Time, step func(d time.Duration)) error {
	chunk := sleepChunk()
	for {
		remaining := time.Until(until)
		if remaining <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d := remaining
		if d > chunk {
			d = chunk
		}
		step(d)
	}
}
