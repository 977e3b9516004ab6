package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics("insightd_test", reg)
	require.NotNil(t, m)

	m.recordTask(statusSubmitted)
	m.recordTask(statusSubmitted)
	m.recordTask(statusCompleted)
	m.observeDuration(50 * time.Millisecond)
	m.setQueueDepth(3)
	m.setWorkersBusy(2)
	m.setInsightsStored(7)
	m.setSubscriptions(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues(statusSubmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues(statusCompleted)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.workersBusy))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.insightsKept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscriptions))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.recordTask(statusFailed)
		m.observeDuration(time.Second)
		m.setQueueDepth(1)
		m.setWorkersBusy(1)
		m.setInsightsStored(1)
		m.setSubscriptions(1)
	})
}

func TestEngine_UpdatesMetricsOnCompletion(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics("insightd_engine_test", reg)

	eng := newTestEngine(t, oneInsightPerTask(0, 80), Options{
		Workers:       1,
		QueueCapacity: 10,
		Metrics:       m,
	})

	_, err := eng.Submit(SubmitRequest{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return eng.Stats().CompletedTasks == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues(statusSubmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues(statusCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.insightsKept))
}
