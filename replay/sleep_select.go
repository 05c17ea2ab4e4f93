package replay

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// selectBackend blocks on a zero-fdset select(2) with a timeout equal to
// the remaining interval. It re-checks ctx between chunks bounded by the
// configured sleep chunk so abort wakes promptly even though select itself
// cannot be interrupted from another goroutine.
type selectBackend struct{}

func newSelectBackend() *selectBackend {
	return &selectBackend{}
}

func (b *selectBackend) SleepUntil(ctx context.Context, target time.Time) error {
	return sleepInChunks(ctx, target, func(d time.Duration) {
		tv := unix.NsecToTimeval(d.Nanoseconds())
		_, _ = unix.Select(0, nil, nil, nil, &tv)
	})
}
