//go:build linux

package replay

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// absTimeBackend sleeps to an absolute monotonic deadline via
// clock_nanosleep(2) with TIMER_ABSTIME. This is the backend that most
// directly matches the timing controller's drift-correction approach of
// computing each delay from an absolute target rather than a sequential
// increment. It sleeps one chunk at a time, each to an absolute deadline,
// so ctx cancellation is observed between chunks.
type absTimeBackend struct {
	// monoOffset converts a wall-clock time.Time target into a
	// CLOCK_MONOTONIC deadline, sampled once at backend construction.
	monoOffset time.Duration
}

func newAbsTimeBackend() (sleepBackend, error) {
	var ts unix.Timespec
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	mono := time.Duration(ts.Sec)*time.Second + time.Duration(ts.Nsec)
	return &absTimeBackend{monoOffset: mono - time.Duration(time.Now().UnixNano())}, nil
}

func (b *absTimeBackend) SleepUntil(ctx context.Context, target time.Time) error {
	if err := sleepInChunks(ctx, target, func(d time.Duration) {
		step := time.Now().Add(d)
		if step.After(target) {
			step = target
		}
		deadline := time.Duration(step.UnixNano()) + b.monoOffset
		ts := unix.Timespec{
			Sec:  int64(deadline / time.Second),
			Nsec: int64(deadline % time.Second),
		}
		for {
			err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &ts, nil)
			if err == nil || err != unix.EINTR {
				break
			}
		}
	}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
