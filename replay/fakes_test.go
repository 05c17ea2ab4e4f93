package replay

import (
	"sync"
	"sync/atomic"

	"github.com/google/gopacket/layers"
)

// fakeEgressWrapper is the test seam for egressWrapper, grounded on the
// teacher's fakePcap substitution pattern in pcap/util_test.go: swap a real
// libpcap-backed dependency for an in-memory recorder.
type fakeEgressWrapper struct {
	mu      sync.Mutex
	opened  map[string]*fakeEgressHandle
	dlt     layers.LinkType
	failOn  string // if non-empty, open(failOn, ...) returns an error
}

func newFakeEgressWrapper() *fakeEgressWrapper {
	return &fakeEgressWrapper{
		opened: make(map[string]*fakeEgressHandle),
		dlt:    layers.LinkTypeEthernet,
	}
}

func (f *fakeEgressWrapper) open(name string, dir Direction) (egressHandle, error) {
	if name == f.failOn {
		return nil, ioErrorf("fake open failure for %s", name)
	}
	h := &fakeEgressHandle{ifaceName: name, linkType: f.dlt}
	f.mu.Lock()
	f.opened[name] = h
	f.mu.Unlock()
	return h, nil
}

func (f *fakeEgressWrapper) sent(name string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.opened[name]
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.sentFrames))
	copy(out, h.sentFrames)
	return out
}

type fakeEgressHandle struct {
	ifaceName string
	linkType  layers.LinkType
	aborted   atomic.Bool

	mu         sync.Mutex
	sentFrames [][]byte
	failNext   int // number of subsequent sends that should short-write/fail
}

func (h *fakeEgressHandle) send(b []byte) (int, error) {
	if h.aborted.Load() {
		return 0, ioErrorf("fake egress aborted")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failNext > 0 {
		h.failNext--
		return 0, ioErrorf("fake send failure")
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	h.sentFrames = append(h.sentFrames, cp)
	return len(b), nil
}

func (h *fakeEgressHandle) abort() {
	h.aborted.Store(true)
}

func (h *fakeEgressHandle) dlt() layers.LinkType {
	return h.linkType
}

func (h *fakeEgressHandle) close() error {
	return nil
}

func (h *fakeEgressHandle) name() string {
	return h.ifaceName
}
