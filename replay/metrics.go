package replay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink receives per-packet accounting pushed from the replay loop.
// It is optional: engine.go nil-checks it on every call site, so attaching
// a sink never gates or slows down a replay that doesn't want one.
type MetricsSink interface {
	AddSent(packets, bytes uint64)
	IncFailed()
}

// PromMetrics is a MetricsSink backed by per-Context prometheus collectors.
// Unlike a package of promauto globals, each Context that wants metrics
// gets its own PromMetrics and Registers it against whatever registry the
// embedding program chooses, so two Contexts in the same process never
// collide on a single global counter.
type PromMetrics struct {
	pktsSent  prometheus.Counter
	bytesSent prometheus.Counter
	failed    prometheus.Counter
}

// NewPromMetrics builds a PromMetrics whose metrics carry a constant run_id
// label set to runID, typically a Context.ID.String(), so multiple embedded engines
// remain distinguishable in one process's /metrics output.
func NewPromMetrics(runID string) *PromMetrics {
	constLabels := prometheus.Labels{"run_id": runID}
	return &PromMetrics{
		pktsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "replay_packets_sent_total",
			Help:        "Packets successfully written to an egress interface.",
			ConstLabels: constLabels,
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "replay_bytes_sent_total",
			Help:        "Bytes successfully written to an egress interface.",
			ConstLabels: constLabels,
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "replay_packets_failed_total",
			Help:        "Packets that failed or wrote short to an egress interface.",
			ConstLabels: constLabels,
		}),
	}
}

// Register attaches the sink's collectors to reg. Callers typically pass
// prometheus.DefaultRegisterer, but a private registry keeps concurrent
// tests from colliding on global collector names.
func (m *PromMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.pktsSent, m.bytesSent, m.failed} {
		if err := reg.Register(c); err != nil {
			return wrapIOErr(err, "failed to register replay metrics")
		}
	}
	return nil
}

func (m *PromMetrics) AddSent(packets, bytes uint64) {
	m.pktsSent.Add(float64(packets))
	m.bytesSent.Add(float64(bytes))
}

func (m *PromMetrics) IncFailed() {
	m.failed.Inc()
}

// SetMetricsSink attaches (or detaches, with nil) a MetricsSink. The engine
// snapshots the pointer once per source under c.mu at the start of
// driveSource, so set it before calling Replay rather than mid-run.
func (c *Context) SetMetricsSink(sink MetricsSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = sink
}
