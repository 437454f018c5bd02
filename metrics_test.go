package rhinorox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rhino-rox/rhino-rox/internal/command"
)

func TestMetricsClassifiesCommandsByFlag(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(command.FlagReadonly, 1000, true)
	m.RecordCommand(command.FlagWrite, 2000, true)
	m.RecordCommand(command.FlagAdmin, 3000, true)
	m.RecordCommand(0, 500, true)
	m.RecordCommand(command.FlagWrite, 0, false)

	snap := m.Snapshot()
	require.Equal(t, uint64(1), snap.ReadCommands)
	require.Equal(t, uint64(1), snap.WriteCommands)
	require.Equal(t, uint64(1), snap.AdminCommands)
	require.Equal(t, uint64(1), snap.OtherCommands)
	require.Equal(t, uint64(1), snap.FailedCommands)
	require.Equal(t, uint64(5), snap.TotalCommands)
}

func TestMetricsErrorRate(t *testing.T) {
	m := NewMetrics()
	m.RecordCommand(command.FlagReadonly, 1000, true)
	m.RecordCommand(command.FlagReadonly, 1000, true)
	m.RecordCommand(command.FlagReadonly, 0, false)

	snap := m.Snapshot()
	require.InDelta(t, 100.0/3.0, snap.ErrorRate, 0.1)
}

func TestMetricsAverageLatency(t *testing.T) {
	m := NewMetrics()
	m.RecordCommand(command.FlagReadonly, 1_000_000, true)
	m.RecordCommand(command.FlagWrite, 2_000_000, true)

	snap := m.Snapshot()
	require.Equal(t, uint64(1_500_000), snap.AvgLatencyNs)
}

func TestMetricsConnectionCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordConnection(true)
	m.RecordConnection(true)
	m.RecordConnection(false)

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.ConnectionsAccepted)
	require.Equal(t, uint64(1), snap.ConnectionsRejected)
}

func TestMetricsUptimeStopsAdvancingAfterStop(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)
	m.Stop()
	stopped := m.Snapshot().UptimeNs

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, stopped, m.Snapshot().UptimeNs)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordCommand(command.FlagReadonly, 1000, true)
	m.RecordConnection(true)
	require.NotZero(t, m.Snapshot().TotalCommands)

	m.Reset()
	snap := m.Snapshot()
	require.Zero(t, snap.TotalCommands)
	require.Zero(t, snap.ConnectionsAccepted)
}

func TestMetricsHistogramPercentiles(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 50; i++ {
		m.RecordCommand(command.FlagReadonly, 500_000, true) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordCommand(command.FlagWrite, 5_000_000, true) // 5ms
	}
	m.RecordCommand(command.FlagWrite, 50_000_000, true) // 50ms, ~P99

	snap := m.Snapshot()
	require.Equal(t, uint64(100), snap.TotalCommands)
	require.Equal(t, uint64(1_000_000), snap.LatencyP50Ns)
	require.GreaterOrEqual(t, snap.LatencyP99Ns, uint64(5_000_000))
}

func TestNoOpObserverDiscardsObservations(t *testing.T) {
	var obs NoOpObserver
	require.NotPanics(t, func() {
		obs.ObserveCommand("get", command.FlagReadonly, 100, true)
	})
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveCommand("set", command.FlagWrite, 10, true)
	obs.ObserveCommand("bogus", 0, 0, false)

	snap := m.Snapshot()
	require.Equal(t, uint64(1), snap.WriteCommands)
	require.Equal(t, uint64(1), snap.FailedCommands)
}
