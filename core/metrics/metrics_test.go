package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := New(registry)

	recorder.IncrementVerdict(true, "auto_verified", 0)
	recorder.IncrementVerdict(false, "unverified", 2)
	recorder.IncrementVerdict(false, "unverified", 1)
	recorder.IncrementChain(false)
	recorder.ObserveEvaluateLatency("evaluate", 3*time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(recorder.Verdicts.WithLabelValues("pass", "auto_verified")))
	require.Equal(t, 2.0, testutil.ToFloat64(recorder.Verdicts.WithLabelValues("blocked", "unverified")))
	require.Equal(t, 3.0, testutil.ToFloat64(recorder.Warnings))
	require.Equal(t, 1.0, testutil.ToFloat64(recorder.Chains.WithLabelValues("blocked")))
	require.Equal(t, 1, testutil.CollectAndCount(recorder.EvaluateLatency))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var recorder *Metrics
	require.NotPanics(t, func() {
		recorder.IncrementVerdict(true, "self_certified", 1)
		recorder.IncrementChain(true)
		recorder.ObserveEvaluateLatency("chain", time.Millisecond)
	})
}
