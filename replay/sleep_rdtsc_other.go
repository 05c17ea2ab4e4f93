//go:build !amd64

package replay

// newRdtscBackend is only implemented on amd64, where the RDTSC
// instruction is available.
func newRdtscBackend() (sleepBackend, error) {
	return nil, configErrorf("Rdtsc sleep backend requires amd64")
}
