package replay

import (
	"io"
	"os"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

// capturedRecord is the uniform yield from any packet source: capture
// timestamp, captured vs. original wire length, and the captured bytes.
type capturedRecord struct {
	Timestamp      time.Time
	CapturedLength int
	OriginalLength int
	Data           []byte
}

// packetSource is the uniform yield API shared by the filename, fd, and
// cache variants. Sources are not restartable: each replay pass constructs
// a fresh one from the same configured descriptor.
type packetSource interface {
	Next() (capturedRecord, bool, error)
	Close() error
}

// fileSource reads an offline capture file via libpcap, matching the
// teacher's filePcapWrapper in pcap_replay_test.go (there used to replay a
// fixture through the HTTP parser; here used to drive the timed replay
// loop directly).
type fileSource struct {
	handle *pcap.Handle
}

// NewFileSource opens path as a capture file.
func NewFileSource(path string) (packetSource, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, wrapIOErr(err, "failed to open capture file %s", path)
	}
	return &fileSource{handle: handle}, nil
}

func (s *fileSource) Next() (capturedRecord, bool, error) {
	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if err == pcap.NextErrorNoMorePackets {
		return capturedRecord{}, false, nil
	}
	if err != nil {
		return capturedRecord{}, false, wrapIOErr(err, "read error on capture file")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return capturedRecord{
		Timestamp:      ci.Timestamp,
		CapturedLength: ci.CaptureLength,
		OriginalLength: ci.Length,
		Data:           cp,
	}, true, nil
}

func (s *fileSource) Close() error {
	s.handle.Close()
	return nil
}

// fdSource wraps an already-open file descriptor as a capture stream using
// gopacket's pure-Go pcapgo reader, avoiding a second libpcap handle for a
// descriptor the caller already owns.
type fdSource struct {
	file   *os.File
	reader *pcapgo.Reader
}

// NewFDSource wraps fd as a capture stream.
func NewFDSource(fd int) (packetSource, error) {
	f := os.NewFile(uintptr(fd), "replay-fd-source")
	if f == nil {
		return nil, ioErrorf("invalid file descriptor %d", fd)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, wrapIOErr(err, "failed to read pcap header from fd %d", fd)
	}
	return &fdSource{file: f, reader: r}, nil
}

func (s *fdSource) Next() (capturedRecord, bool, error) {
	data, ci, err := s.reader.ZeroCopyReadPacketData()
	if err == io.EOF {
		return capturedRecord{}, false, nil
	}
	if err != nil {
		return capturedRecord{}, false, wrapIOErr(err, "read error on fd source")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return capturedRecord{
		Timestamp:      ci.Timestamp,
		CapturedLength: ci.CaptureLength,
		OriginalLength: ci.Length,
		Data:           cp,
	}, true, nil
}

func (s *fdSource) Close() error {
	return s.file.Close()
}
