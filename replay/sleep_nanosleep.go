package replay

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// nanoSleepBackend requests OS sleeps for the bulk of the interval via
// nanosleep(2), in chunks so ctx cancellation is observed between them,
// then tight-polls the remainder for accuracy.
type nanoSleepBackend struct{}

func newNanoSleepBackend() *nanoSleepBackend {
	return &nanoSleepBackend{}
}

// tailPollWindow is how much of the interval is left to the tight-poll tail
// rather than the OS sleep.
const tailPollWindow = 500 * time.Microsecond

func (b *nanoSleepBackend) SleepUntil(ctx context.Context, target time.Time) error {
	if err := sleepInChunks(ctx, target.Add(-tailPollWindow), func(d time.Duration) {
		ts := unix.NsecToTimespec(d.Nanoseconds())
		rem := unix.Timespec{}
		for {
			err := unix.Nanosleep(&ts, &rem)
			if err == nil {
				break
			}
			if err != unix.EINTR {
				break
			}
			ts = rem
		}
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Tight-poll the remainder for precision.
	for time.Now().Before(target) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}
