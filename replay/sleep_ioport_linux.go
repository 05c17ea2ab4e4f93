//go:build linux

package replay

import (
	"context"
	"os"
	"runtime"
	"time"
)

// ioPortBackend performs a ~1µs I/O-port read once per iteration; only
// available on x86. Go has no portable inb/outb; on Linux we approximate
// the classic tcpreplay behavior by reading a single byte from /dev/port
// (an x86 PC/AT legacy I/O port is ~1µs per access), which requires root or
// CAP_SYS_RAWIO. Permission failure is surfaced here, at construction, not
// at every sleep.
type ioPortBackend struct {
	port *os.File
}

func newIoPortBackend() (sleepBackend, error) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "386" {
		return nil, configErrorf("IoPort sleep backend is only supported on linux/x86")
	}
	f, err := os.OpenFile("/dev/port", os.O_RDONLY, 0)
	if err != nil {
		return nil, wrapIOErr(err, "IoPort backend requires access to /dev/port")
	}
	return &ioPortBackend{port: f}, nil
}

func (b *ioPortBackend) Close() error {
	return b.port.Close()
}

func (b *ioPortBackend) SleepUntil(ctx context.Context, target time.Time) error {
	buf := make([]byte, 1)
	for time.Now().Before(target) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := b.port.ReadAt(buf, 0x80); err != nil {
			return wrapIOErr(err, "IoPort read failed")
		}
	}
	return nil
}
