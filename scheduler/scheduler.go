// Package scheduler runs periodic housekeeping next to the worker pool.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/firasghr/GoDispatcher/logger"
	"github.com/firasghr/GoDispatcher/metrics"
	"github.com/firasghr/GoDispatcher/worker"
)

// StatsSource is satisfied by *worker.ThreadPool.
type StatsSource interface {
	Stats() worker.Stats
}

// Scheduler periodically logs a one-line summary of the request counters and
// the pool's state.
//
// Architecture:
//   - The ticking is delegated to a gocron scheduler in singleton mode, so a
//     slow report is never overlapped by the next one.
//   - Scheduler never submits work to the pool; it only reads Stats.
//   - Stop is idempotent.
type Scheduler struct {
	cron    *gocron.Scheduler
	pool    StatsSource
	metrics *metrics.Metrics
	log     *logger.Logger

	mu      sync.Mutex
	reports int
	once    sync.Once
}

// NewScheduler creates a Scheduler that reports every interval.
func NewScheduler(pool StatsSource, m *metrics.Metrics, log *logger.Logger, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}
	if log == nil {
		log = logger.Discard()
	}
	sc := &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		pool:    pool,
		metrics: m,
		log:     log,
	}
	sc.cron.SingletonModeAll()
	if _, err := sc.cron.Every(interval).WaitForSchedule().Do(sc.Report); err != nil {
		return nil, fmt.Errorf("scheduler: schedule report: %w", err)
	}
	return sc, nil
}

// Start begins reporting in the background.
func (sc *Scheduler) Start() { sc.cron.StartAsync() }

// Report logs one summary line.  It is what the scheduler runs on every tick
// and may also be called directly.
func (sc *Scheduler) Report() {
	st := sc.pool.Stats()
	total, success, failed := sc.metrics.Snapshot()
	sc.log.Infof("metrics – total: %d | success: %d | failed: %d | rps: %.1f | busy: %d/%d | queued: %d",
		total, success, failed, sc.metrics.RequestsPerSecond(), st.Busy, st.NumWorkers, st.Queued)

	sc.mu.Lock()
	sc.reports++
	sc.mu.Unlock()
}

// Reports returns how many reports have been logged.
func (sc *Scheduler) Reports() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.reports
}

// Stop halts reporting.  Stop is idempotent.
func (sc *Scheduler) Stop() {
	sc.once.Do(sc.cron.Stop)
}
