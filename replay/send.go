package replay

import (
	"sync/atomic"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

const (
	// The same default as tcpdump.
	defaultSnapLen = 262144
)

// Direction is an advisory label attached to an egress at open time; it has
// no effect on behavior, only on diagnostics.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

func (d Direction) String() string {
	if d == ServerToClient {
		return "server-to-client"
	}
	return "client-to-server"
}

// egressWrapper is the seam that lets tests substitute a fake NIC for a real
// one; egressImpl is the only production implementation.
type egressWrapper interface {
	open(name string, dir Direction) (egressHandle, error)
}

// egressHandle is the send-packet adapter contract shared by every egress
// implementation: send, abort (non-blocking), dlt, close.
type egressHandle interface {
	send(b []byte) (int, error)
	abort()
	dlt() layers.LinkType
	close() error
	name() string
}

type egressImpl struct{}

func (egressImpl) open(ifaceName string, dir Direction) (egressHandle, error) {
	handle, err := pcap.OpenLive(ifaceName, defaultSnapLen, false, pcap.BlockForever)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open egress %s (%s)", ifaceName, dir)
	}
	return &pcapEgress{ifaceName: ifaceName, handle: handle}, nil
}

// pcapEgress writes framed packets to a live interface through libpcap.
// Short writes are reported to the caller, who is responsible for counting
// them as transient failures; they are never treated as fatal here.
type pcapEgress struct {
	ifaceName string
	handle    *pcap.Handle
	aborted   atomic.Bool
}

func (e *pcapEgress) send(b []byte) (int, error) {
	if e.aborted.Load() {
		return 0, errors.New("egress aborted")
	}
	if err := e.handle.WritePacketData(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// abort is non-blocking: it marks the handle so every later send fails
// fast. It does not interrupt a WritePacketData call already underway.
func (e *pcapEgress) abort() {
	e.aborted.Store(true)
}

func (e *pcapEgress) dlt() layers.LinkType {
	return e.handle.LinkType()
}

func (e *pcapEgress) close() error {
	e.handle.Close()
	return nil
}

func (e *pcapEgress) name() string {
	return e.ifaceName
}
