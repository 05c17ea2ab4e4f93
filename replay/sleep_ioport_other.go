//go:build !linux

package replay

// newIoPortBackend is only implemented on linux/x86, where /dev/port
// exposes legacy I/O-port reads.
func newIoPortBackend() (sleepBackend, error) {
	return nil, configErrorf("IoPort sleep backend is only supported on linux/x86")
}
