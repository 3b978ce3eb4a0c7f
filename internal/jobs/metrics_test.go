package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	require.NoError(t, metrics.Track("automation_purchase_order").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("automation_purchase_order").End(boom), boom)
	metrics.ObserveItem("success")
	metrics.ObserveItem("success")

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("automation_purchase_order", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("automation_purchase_order")))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.items.WithLabelValues("success")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("any").End(boom), boom)
	metrics.ObserveItem("failed")
}
