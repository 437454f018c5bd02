package rhinorox

import (
	"sync/atomic"
	"time"

	"github.com/rhino-rox/rhino-rox/internal/command"
)

// LatencyBuckets defines the command-latency histogram buckets in
// nanoseconds, covering 1us to 10s with logarithmic spacing - the same
// bucket shape the teacher uses for per-I/O latency, reused here for
// per-command latency.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks command-dispatch and connection statistics for a
// Server, grounded on the teacher's Metrics (atomic counters + a
// cumulative latency histogram + percentile estimation), retargeted
// from block I/O (ReadOps/WriteOps/DiscardOps/FlushOps) to command
// dispatch (ReadCommands/WriteCommands/AdminCommands/FailedCommands).
type Metrics struct {
	// Command counters, classified by the Flag bits command.Dispatch
	// reports through Observer.
	ReadCommands   atomic.Uint64 // dispatched commands flagged FlagReadonly
	WriteCommands  atomic.Uint64 // dispatched commands flagged FlagWrite
	AdminCommands  atomic.Uint64 // dispatched commands flagged FlagAdmin
	OtherCommands  atomic.Uint64 // dispatched commands with none of the above
	FailedCommands atomic.Uint64 // unknown command or arity mismatch

	// Connection counters, updated only through RecordConnection; the
	// Server itself does not call it.
	ConnectionsAccepted  atomic.Uint64
	ConnectionsRejected  atomic.Uint64

	// Performance tracking.
	TotalLatencyNs atomic.Uint64 // cumulative handler time in nanoseconds
	OpCount        atomic.Uint64 // commands counted toward latency (FailedCommands excluded)

	// Latency histogram buckets (cumulative counts): bucket[i] holds
	// the count of commands with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // server start timestamp (UnixNano)
	StopTime  atomic.Int64 // server stop timestamp (UnixNano), 0 while running
}

// NewMetrics creates a metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommand records one dispatched command, classifying it by
// flags and, when ok, folding its latency into the histogram.
func (m *Metrics) RecordCommand(flags command.Flag, latencyNs uint64, ok bool) {
	if !ok {
		m.FailedCommands.Add(1)
		return
	}

	switch {
	case flags&command.FlagAdmin != 0:
		m.AdminCommands.Add(1)
	case flags&command.FlagWrite != 0:
		m.WriteCommands.Add(1)
	case flags&command.FlagReadonly != 0:
		m.ReadCommands.Add(1)
	default:
		m.OtherCommands.Add(1)
	}

	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordConnection records one accept(2) outcome.
func (m *Metrics) RecordConnection(accepted bool) {
	if accepted {
		m.ConnectionsAccepted.Add(1)
	} else {
		m.ConnectionsRejected.Add(1)
	}
}

// Stop marks the server as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics plus derived
// statistics (rates, percentiles) that aren't meaningful to compute
// incrementally.
type MetricsSnapshot struct {
	ReadCommands   uint64
	WriteCommands  uint64
	AdminCommands  uint64
	OtherCommands  uint64
	FailedCommands uint64
	TotalCommands  uint64

	ConnectionsAccepted uint64
	ConnectionsRejected uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	CommandsPerSecond float64
	ErrorRate         float64 // percentage of dispatches that failed
}

// Snapshot computes a MetricsSnapshot from the live counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReadCommands:        m.ReadCommands.Load(),
		WriteCommands:       m.WriteCommands.Load(),
		AdminCommands:       m.AdminCommands.Load(),
		OtherCommands:       m.OtherCommands.Load(),
		FailedCommands:      m.FailedCommands.Load(),
		ConnectionsAccepted: m.ConnectionsAccepted.Load(),
		ConnectionsRejected: m.ConnectionsRejected.Load(),
	}
	snap.TotalCommands = snap.ReadCommands + snap.WriteCommands + snap.AdminCommands +
		snap.OtherCommands + snap.FailedCommands

	opCount := m.OpCount.Load()
	totalLatencyNs := m.TotalLatencyNs.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}
	if snap.UptimeNs > 0 {
		snap.CommandsPerSecond = float64(snap.TotalCommands) / (float64(snap.UptimeNs) / 1e9)
	}
	if snap.TotalCommands > 0 {
		snap.ErrorRate = float64(snap.FailedCommands) / float64(snap.TotalCommands) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) by linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes every counter, useful between test cases.
func (m *Metrics) Reset() {
	m.ReadCommands.Store(0)
	m.WriteCommands.Store(0)
	m.AdminCommands.Store(0)
	m.OtherCommands.Store(0)
	m.FailedCommands.Store(0)
	m.ConnectionsAccepted.Store(0)
	m.ConnectionsRejected.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the pluggable telemetry sink a Server's command.Table
// reports to. It satisfies command.Observer directly.
type Observer = command.Observer

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCommand(string, command.Flag, uint64, bool) {}

// MetricsObserver implements command.Observer by recording into a
// Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver builds an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommand(name string, flags command.Flag, microseconds uint64, ok bool) {
	o.metrics.RecordCommand(flags, microseconds*1000, ok)
}

var _ command.Observer = (*MetricsObserver)(nil)
var _ command.Observer = NoOpObserver{}
