package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func resetCollectors() {
	patchesRenderedCounterLock.Lock()
	patchesRenderedCounter = nil
	patchesRenderedCounterLock.Unlock()
	patchesCoalescedCounterLock.Lock()
	patchesCoalescedCounter = nil
	patchesCoalescedCounterLock.Unlock()
	malformedFramesCounterLock.Lock()
	malformedFramesCounter = nil
	malformedFramesCounterLock.Unlock()
	commandsRejectedCounterLock.Lock()
	commandsRejectedCounter = nil
	commandsRejectedCounterLock.Unlock()
	sessionsGaugeLock.Lock()
	sessionsGauge = nil
	sessionsGaugeLock.Unlock()
}

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncPatchesRendered(3)
	collector.IncMalformedFrames()
	collector.SetSessions(1)
}

func TestPrometheusCollectorRegistersAndReuses(t *testing.T) {
	resetCollectors()

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.NotNil(t, collector)

	collector.IncPatchesRendered(2)
	collector.IncPatchesCoalesced(1)
	collector.IncMalformedFrames()
	collector.IncCommandsRejected("out_of_range")
	collector.SetSessions(3)

	metrics, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, metrics, 5)
	requireValue(t, metrics, "microdash_patches_rendered_total", 2)
	requireValue(t, metrics, "microdash_patches_coalesced_total", 1)
	requireValue(t, metrics, "microdash_malformed_frames_total", 1)
	requireValue(t, metrics, "microdash_commands_rejected_total", 1)
	requireValue(t, metrics, "microdash_sessions", 3)

	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, collector.patchesRendered, again.patchesRendered)

	again.IncPatchesRendered(1)
	metrics, err = reg.Gather()
	require.NoError(t, err)
	requireValue(t, metrics, "microdash_patches_rendered_total", 3)
}

func TestZeroCountsAreNotRecorded(t *testing.T) {
	resetCollectors()

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncPatchesRendered(0)
	collector.IncPatchesCoalesced(0)

	metrics, err := reg.Gather()
	require.NoError(t, err)
	requireValue(t, metrics, "microdash_patches_rendered_total", 0)
	requireValue(t, metrics, "microdash_patches_coalesced_total", 0)
}

func requireValue(t *testing.T, metrics []*dto.MetricFamily, name string, value float64) {
	t.Helper()
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		require.Len(t, mf.Metric, 1)
		m := mf.Metric[0]
		switch {
		case m.Counter != nil:
			require.Equal(t, value, m.Counter.GetValue())
		case m.Gauge != nil:
			require.Equal(t, value, m.Gauge.GetValue())
		default:
			t.Fatalf("metric %s has no counter or gauge", name)
		}
		return
	}
	t.Fatalf("metric %s not gathered", name)
}
