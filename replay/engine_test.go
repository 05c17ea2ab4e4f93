package replay

import (
	"runtime"
	"testing"
	"time"
)

func newEngineTestContext(t *testing.T) (*Context, *fakeEgressWrapper) {
	t.Helper()
	c := New()
	fw := newFakeEgressWrapper()
	c.egress = fw
	if err := c.SetInterface(true, "eth0"); err != nil {
		t.Fatalf("SetInterface: %v", err)
	}
	if err := c.SetSpeedMode(SpeedTopSpeed); err != nil {
		t.Fatalf("SetSpeedMode: %v", err)
	}
	return c, fw
}

func TestReplaySingleSourceTopSpeed(t *testing.T) {
	c, fw := newEngineTestContext(t)

	frames := [][]byte{
		synthesizeUDPFrame(t, 1000, 2000, []byte("one")),
		synthesizeUDPFrame(t, 1000, 2000, []byte("two")),
		synthesizeUDPFrame(t, 1000, 2000, []byte("three")),
	}
	path := writePcapFile(t, frames, nil)
	if err := c.AddPcapFile(path); err != nil {
		t.Fatalf("AddPcapFile: %v", err)
	}

	if err := c.Replay(-1); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	sent := fw.sent("eth0")
	if len(sent) != len(frames) {
		t.Fatalf("sent %d frames, want %d", len(sent), len(frames))
	}
	stats := c.GetStats()
	if stats.PktsSent != uint64(len(frames)) {
		t.Errorf("PktsSent = %d, want %d", stats.PktsSent, len(frames))
	}
	if stats.StartTime.IsZero() || stats.EndTime.IsZero() {
		t.Error("expected start_time and end_time to be populated")
	}
	if c.IsRunning() {
		t.Error("expected running=false after Replay returns")
	}
}

func TestReplayLimitSendStopsEarly(t *testing.T) {
	c, fw := newEngineTestContext(t)
	if err := c.SetLimitSend(2); err != nil {
		t.Fatalf("SetLimitSend: %v", err)
	}

	frames := [][]byte{
		synthesizeUDPFrame(t, 1, 2, []byte("a")),
		synthesizeUDPFrame(t, 1, 2, []byte("b")),
		synthesizeUDPFrame(t, 1, 2, []byte("c")),
		synthesizeUDPFrame(t, 1, 2, []byte("d")),
	}
	path := writePcapFile(t, frames, nil)
	if err := c.AddPcapFile(path); err != nil {
		t.Fatalf("AddPcapFile: %v", err)
	}

	if err := c.Replay(-1); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if got := c.GetPktsSent(); got != 2 {
		t.Fatalf("PktsSent = %d, want 2 (limit_send)", got)
	}
	if got := len(fw.sent("eth0")); got != 2 {
		t.Fatalf("sent %d frames, want 2", got)
	}
}

func TestReplayLimitSendZeroSendsNothing(t *testing.T) {
	c, fw := newEngineTestContext(t)
	if err := c.SetLimitSend(0); err != nil {
		t.Fatalf("SetLimitSend: %v", err)
	}

	frames := [][]byte{
		synthesizeUDPFrame(t, 1, 2, []byte("a")),
		synthesizeUDPFrame(t, 1, 2, []byte("b")),
	}
	path := writePcapFile(t, frames, nil)
	if err := c.AddPcapFile(path); err != nil {
		t.Fatalf("AddPcapFile: %v", err)
	}

	if err := c.Replay(-1); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if got := c.GetPktsSent(); got != 0 {
		t.Fatalf("PktsSent = %d, want 0 (limit_send=0)", got)
	}
	if got := len(fw.sent("eth0")); got != 0 {
		t.Fatalf("sent %d frames, want 0", got)
	}
}

func TestReplayTracksFailedSends(t *testing.T) {
	c, fw := newEngineTestContext(t)

	frames := [][]byte{
		synthesizeUDPFrame(t, 1, 2, []byte("a")),
		synthesizeUDPFrame(t, 1, 2, []byte("b")),
	}
	path := writePcapFile(t, frames, nil)
	if err := c.AddPcapFile(path); err != nil {
		t.Fatalf("AddPcapFile: %v", err)
	}

	if err := c.Replay(-1); err != nil {
		t.Fatalf("first Replay: %v", err)
	}

	handle := fw.opened["eth0"]
	handle.mu.Lock()
	handle.failNext = 1
	handle.mu.Unlock()

	if err := c.Replay(-1); err != nil {
		t.Fatalf("second Replay: %v", err)
	}
	if got := c.GetFailed(); got != 1 {
		t.Fatalf("Failed = %d, want 1", got)
	}
	if got := c.GetPktsSent(); got != 1 {
		t.Fatalf("PktsSent = %d, want 1 (one of two sends failed)", got)
	}
}

func TestReplayAbortStopsLoop(t *testing.T) {
	c, _ := newEngineTestContext(t)
	if err := c.SetLoop(0); err != nil { // loop forever until aborted
		t.Fatalf("SetLoop: %v", err)
	}

	frames := [][]byte{synthesizeUDPFrame(t, 1, 2, []byte("only"))}
	path := writePcapFile(t, frames, nil)
	if err := c.AddPcapFile(path); err != nil {
		t.Fatalf("AddPcapFile: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Replay(-1)
	}()

	// Wait until the replay has sent a packet before asking it to stop:
	// Replay clears the abort flag when it starts, so an Abort issued before
	// that point would be lost. After that, timing only changes how many
	// passes run.
	deadline := time.Now().Add(5 * time.Second)
	for c.GetPktsSent() == 0 && time.Now().Before(deadline) {
		runtime.Gosched()
	}
	c.Abort()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Replay: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Replay did not return after Abort")
	}
	if c.IsRunning() {
		t.Error("expected running=false after aborted Replay returns")
	}
}

func TestReplayRejectsConcurrentRun(t *testing.T) {
	c, _ := newEngineTestContext(t)
	frames := [][]byte{synthesizeUDPFrame(t, 1, 2, []byte("only"))}
	path := writePcapFile(t, frames, nil)
	if err := c.AddPcapFile(path); err != nil {
		t.Fatalf("AddPcapFile: %v", err)
	}

	c.running.Store(true) // simulate an in-flight replay
	if err := c.Replay(-1); err == nil {
		t.Fatal("expected error starting replay while already running")
	}
	c.running.Store(false)
}

func TestReplayRoutesAcrossTwoEgresses(t *testing.T) {
	c, fw := newEngineTestContext(t)
	if err := c.SetInterface(false, "eth1"); err != nil {
		t.Fatalf("SetInterface(secondary): %v", err)
	}

	frames := [][]byte{
		synthesizeUDPFrame(t, 1, 2, []byte("a")),
		synthesizeUDPFrame(t, 1, 2, []byte("b")),
		synthesizeUDPFrame(t, 1, 2, []byte("c")),
		synthesizeUDPFrame(t, 1, 2, []byte("d")),
	}
	path := writePcapFile(t, frames, nil)
	if err := c.AddPcapFile(path); err != nil {
		t.Fatalf("AddPcapFile: %v", err)
	}

	rc := NewRoutingCache([]byte{0b00001010}, len(frames), "alternate")
	c.mu.Lock()
	c.opts.RoutingCache = rc
	c.mu.Unlock()

	if err := c.Replay(-1); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	primary := fw.sent("eth0")
	secondary := fw.sent("eth1")
	if len(primary) != 2 || len(secondary) != 2 {
		t.Fatalf("got %d primary / %d secondary, want 2/2 per routing cache bits", len(primary), len(secondary))
	}
}
