// Package metrics provides request and job counters for the dispatcher.
// Hot-path counters are plain atomics; the same events are mirrored into
// Prometheus collectors on a private registry for scraping.
package metrics

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dispatcher"

// Metrics tracks aggregate statistics for the dispatcher.
//
// All counters are accessed exclusively through atomic operations, so the
// struct may be shared by every worker goroutine without extra locking.
// Metrics satisfies worker.Recorder.
type Metrics struct {
	// TotalRequests is the number of connections handled since startup.
	TotalRequests uint64

	// Success is the number of requests answered with a 2xx status.
	Success uint64

	// Failed is the number of requests answered with any other status, or
	// dropped before a response could be written.
	Failed uint64

	startTime time.Time

	registry      *prometheus.Registry
	jobsSubmitted prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsPanicked  prometheus.Counter
	busyWorkers   prometheus.Gauge
	workersAlive  prometheus.Gauge
	jobDuration   prometheus.Histogram
	requests      *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with the start time set to now and
// its collectors registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted by the worker pool.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that finished, including ones that panicked.",
		}),
		jobsPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs whose panic was recovered by a worker.",
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Number of workers currently executing a job.",
		}),
		workersAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_alive",
			Help:      "Number of worker loops that have not exited.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time.",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served, by HTTP status code.",
		}, []string{"code"}),
	}
	m.registry.MustRegister(
		m.jobsSubmitted,
		m.jobsCompleted,
		m.jobsPanicked,
		m.busyWorkers,
		m.workersAlive,
		m.jobDuration,
		m.requests,
	)
	return m
}

// Registry exposes the Prometheus registry holding this instance's collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }


// IncrementTotal atomically increments the total-requests counter.
func (m *Metrics) IncrementTotal() {
	atomic.AddUint64(&m.TotalRequests, 1)
}

// IncrementSuccess atomically increments the successful-requests counter.
func (m *Metrics) IncrementSuccess() {
	atomic.AddUint64(&m.Success, 1)
}

// IncrementFailed atomically increments the failed-requests counter.
func (m *Metrics) IncrementFailed() {
	atomic.AddUint64(&m.Failed, 1)
}

// ObserveRequest counts one handled request with the given status code.
// A code of 0 means no response was written.
func (m *Metrics) ObserveRequest(code int) {
	m.IncrementTotal()
	if code >= 200 && code < 300 {
		m.IncrementSuccess()
	} else {
		m.IncrementFailed()
	}
	label := "none"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(label).Inc()
}

// JobSubmitted implements worker.Recorder.
func (m *Metrics) JobSubmitted() { m.jobsSubmitted.Inc() }

// JobStarted implements worker.Recorder.
func (m *Metrics) JobStarted(int) { m.busyWorkers.Inc() }

// JobFinished implements worker.Recorder.
func (m *Metrics) JobFinished(_ int, elapsed time.Duration, panicked bool) {
	m.busyWorkers.Dec()
	m.jobsCompleted.Inc()
	m.jobDuration.Observe(elapsed.Seconds())
	if panicked {
		m.jobsPanicked.Inc()
	}
}

// WorkerStarted implements worker.Recorder.
func (m *Metrics) WorkerStarted(int) { m.workersAlive.Inc() }

// WorkerExited implements worker.Recorder.
func (m *Metrics) WorkerExited(int) { m.workersAlive.Dec() }

// RequestsPerSecond returns the average request rate since the Metrics
// instance was created.  Returns 0 if called in the same instant as
// creation to avoid division by zero.
func (m *Metrics) RequestsPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&m.TotalRequests)) / elapsed
}

// Snapshot returns a point-in-time copy of the request counters.  The three
// loads are not taken under a single lock, so the snapshot may be very
// slightly inconsistent, which is acceptable for monitoring purposes.
func (m *Metrics) Snapshot() (total, success, failed uint64) {
	return atomic.LoadUint64(&m.TotalRequests),
		atomic.LoadUint64(&m.Success),
		atomic.LoadUint64(&m.Failed)
}
