package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/metrics"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &io_prometheus_client.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestObserveForestSetsNodesActive(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.Register(reg)

	f, err := ddkit.NewForest(4)
	require.NoError(t, err)

	c.ObserveForest("fwd", f)

	g, err := c.NodesActive.GetMetricWithLabelValues("fwd")
	require.NoError(t, err)
	require.GreaterOrEqual(t, gaugeValue(t, g), 0.0)
}

func TestRecordAcceptedRejectedIncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.Register(reg)

	c.RecordAccepted()
	c.RecordAccepted()
	c.RecordRejected()

	m := &io_prometheus_client.Metric{}
	require.NoError(t, c.PlansAccepted.Write(m))
	require.Equal(t, 2.0, m.GetCounter().GetValue())
}

func TestRecordGCRunIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.Register(reg)

	c.RecordGCRun("fwd", "optimistic")
	g, err := c.GCRuns.GetMetricWithLabelValues("fwd", "optimistic")
	require.NoError(t, err)

	m := &io_prometheus_client.Metric{}
	require.NoError(t, g.Write(m))
	require.Equal(t, 1.0, m.GetCounter().GetValue())
}
