package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasghr/GoDispatcher/metrics"
	"github.com/firasghr/GoDispatcher/worker"
)

var _ worker.Recorder = (*metrics.Metrics)(nil)

func TestObserveRequest(t *testing.T) {
	m := metrics.NewMetrics()
	m.ObserveRequest(200)
	m.ObserveRequest(200)
	m.ObserveRequest(404)
	m.ObserveRequest(0)

	total, success, failed := m.Snapshot()
	if total != 4 {
		t.Errorf("TotalRequests: got %d, want 4", total)
	}
	if success != 2 {
		t.Errorf("Success: got %d, want 2", success)
	}
	if failed != 2 {
		t.Errorf("Failed: got %d, want 2", failed)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := metrics.NewMetrics()
	const goroutines = 1000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			m.IncrementTotal()
			m.IncrementSuccess()
		}()
	}
	wg.Wait()

	total, success, _ := m.Snapshot()
	if total != goroutines {
		t.Errorf("TotalRequests: got %d, want %d", total, goroutines)
	}
	if success != goroutines {
		t.Errorf("Success: got %d, want %d", success, goroutines)
	}
}

func TestPoolEventsExported(t *testing.T) {
	m := metrics.NewMetrics()
	p, err := worker.NewThreadPool(2, worker.WithRecorder(m))
	require.NoError(t, err)
	assert.Equal(t, 2.0, gauge(t, m, "dispatcher_workers_alive"))

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Execute(func() { time.Sleep(time.Millisecond) }))
	}
	require.NoError(t, p.Execute(func() { panic("boom") }))
	require.NoError(t, p.Shutdown())

	n, err := testutil.GatherAndCount(m.Registry(),
		"dispatcher_jobs_submitted_total",
		"dispatcher_jobs_completed_total",
		"dispatcher_jobs_panicked_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 4.0, values["dispatcher_jobs_submitted_total"])
	assert.Equal(t, 4.0, values["dispatcher_jobs_completed_total"])
	assert.Equal(t, 1.0, values["dispatcher_jobs_panicked_total"])
	assert.Equal(t, 0.0, values["dispatcher_busy_workers"])
	assert.Equal(t, 0.0, values["dispatcher_workers_alive"])
}

func gauge(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("gauge %s not gathered", name)
	return 0
}

func TestWorkersAliveTracksPool(t *testing.T) {
	m := metrics.NewMetrics()
	p, err := worker.NewThreadPool(3, worker.WithRecorder(m))
	require.NoError(t, err)
	assert.Equal(t, 3.0, gauge(t, m, "dispatcher_workers_alive"))

	require.NoError(t, p.Shutdown())
	assert.Equal(t, 0.0, gauge(t, m, "dispatcher_workers_alive"))
}
