package replay

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestRoutingCacheRoute(t *testing.T) {
	// bit 0 = Primary, bit 1 = Secondary, bit 2 = Primary, bit 3 = Secondary
	rc := NewRoutingCache([]byte{0b00001010}, 4, "")

	cases := []struct {
		idx  int
		want Egress
	}{
		{0, Primary},
		{1, Secondary},
		{2, Primary},
		{3, Secondary},
	}
	for _, c := range cases {
		if got := rc.Route(c.idx); got != c.want {
			t.Errorf("Route(%d) = %v, want %v", c.idx, got, c.want)
		}
	}
}

func TestRoutingCacheNilAndOutOfRangeDefaultToPrimary(t *testing.T) {
	var rc *RoutingCache
	if got := rc.Route(0); got != Primary {
		t.Errorf("nil RoutingCache.Route(0) = %v, want Primary", got)
	}

	rc = NewRoutingCache([]byte{0xFF}, 2, "")
	if got := rc.Route(5); got != Primary {
		t.Errorf("out-of-range Route(5) = %v, want Primary", got)
	}
}

func TestReadRoutingCacheRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	hdr := routingCacheFileHeader{
		Magic:       routingCacheMagic,
		PacketCount: 10,
		CommentLen:  uint32(len("hello")),
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		t.Fatalf("binary.Write header: %v", err)
	}
	buf.WriteString("hello")
	buf.Write([]byte{0b10101010, 0b00000011})

	rc, err := readRoutingCache(&buf)
	if err != nil {
		t.Fatalf("readRoutingCache: %v", err)
	}
	if rc.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", rc.Len())
	}
	if rc.Comment != "hello" {
		t.Fatalf("Comment = %q, want %q", rc.Comment, "hello")
	}
	if got := rc.Route(1); got != Secondary {
		t.Errorf("Route(1) = %v, want Secondary", got)
	}
	if got := rc.Route(8); got != Secondary {
		t.Errorf("Route(8) = %v, want Secondary", got)
	}
}

func TestReadRoutingCacheBadMagic(t *testing.T) {
	var buf bytes.Buffer
	hdr := routingCacheFileHeader{Magic: 0xDEADBEEF, PacketCount: 0, CommentLen: 0}
	binary.Write(&buf, binary.LittleEndian, hdr)

	if _, err := readRoutingCache(&buf); err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}
