//go:build !linux

package replay

// newAbsTimeBackend is only implemented on linux, where
// clock_nanosleep(CLOCK_MONOTONIC, TIMER_ABSTIME, ...) is available.
func newAbsTimeBackend() (sleepBackend, error) {
	return nil, configErrorf("AbsTime sleep backend is not supported on this platform")
}
