package replay

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// getTimeOfDayBackend busy-polls the wall clock via gettimeofday(2) until
// the target is reached: highest CPU cost of the backends, with resolution
// bounded only by clock resolution.
type getTimeOfDayBackend struct{}

func newGetTimeOfDayBackend() *getTimeOfDayBackend {
	return &getTimeOfDayBackend{}
}

func (b *getTimeOfDayBackend) SleepUntil(ctx context.Context, target time.Time) error {
	for {
		var tv unix.Timeval
		if err := unix.Gettimeofday(&tv); err != nil {
			// Fall back to the monotonic clock if the syscall itself fails;
			// this keeps pacing correct even if gettimeofday is unavailable.
			if !time.Now().Before(target) {
				return nil
			}
		} else if now := time.Unix(int64(tv.Sec), int64(tv.Usec)*1000); !now.Before(target) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
