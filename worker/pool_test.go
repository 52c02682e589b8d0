package worker_test

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/firasghr/GoDispatcher/worker"
)

func newPool(t *testing.T, size int, opts ...worker.Option) *worker.ThreadPool {
	t.Helper()
	p, err := worker.NewThreadPool(size, opts...)
	require.NoError(t, err)
	return p
}

func TestThreadPool_ExecutesAllJobsOnce(t *testing.T) {
	const jobs = 500
	p := newPool(t, 10)

	counts := make([]int32, jobs)
	for i := 0; i < jobs; i++ {
		i := i
		require.NoError(t, p.Execute(func() {
			atomic.AddInt32(&counts[i], 1)
		}))
	}
	require.NoError(t, p.Shutdown())

	for i, n := range counts {
		if n != 1 {
			t.Errorf("job %d ran %d times", i, n)
		}
	}
	stats := p.Stats()
	assert.Equal(t, uint64(jobs), stats.Submitted)
	assert.Equal(t, uint64(jobs), stats.Completed)
}

func TestThreadPool_ShutdownDrainsQueue(t *testing.T) {
	const size = 3
	const jobs = 50
	p := newPool(t, size)

	var done int64
	for i := 0; i < jobs; i++ {
		require.NoError(t, p.Execute(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&done, 1)
		}))
	}
	require.NoError(t, p.Shutdown())

	assert.Equal(t, int64(jobs), atomic.LoadInt64(&done))
	stats := p.Stats()
	assert.Equal(t, uint64(size), stats.TerminatesSent)
	assert.Equal(t, uint64(size), stats.TerminatesConsumed)
	assert.Equal(t, 0, stats.Queued)
	for _, ws := range stats.Workers {
		assert.True(t, ws.Terminated, "worker %d", ws.WorkerID)
		assert.Equal(t, worker.StateTerminated.String(), ws.State)
	}
}

func TestThreadPool_ShutdownWithNoJobs(t *testing.T) {
	p := newPool(t, 4)
	require.NoError(t, p.Shutdown())
	assert.Equal(t, uint64(4), p.Stats().TerminatesConsumed)
}

func TestThreadPool_ShutdownWaitsForSlowJob(t *testing.T) {
	const slow = 300 * time.Millisecond
	p := newPool(t, 2)

	started := make(chan struct{})
	var slowDone atomic.Bool
	require.NoError(t, p.Execute(func() {
		close(started)
		time.Sleep(slow)
		slowDone.Store(true)
	}))
	<-started

	// Quick jobs keep the other worker busy consuming messages, so the
	// Terminate messages may be taken in any order.
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Execute(func() {}))
	}

	begin := time.Now()
	finished := make(chan error, 1)
	go func() { finished <- p.Shutdown() }()

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown hung")
	}
	assert.True(t, slowDone.Load(), "Shutdown returned before the slow job finished")
	assert.Less(t, time.Since(begin), slow+time.Second)
}

func TestThreadPool_InvalidSize(t *testing.T) {
	before := runtime.NumGoroutine()
	for _, size := range []int{0, -1} {
		p, err := worker.NewThreadPool(size)
		assert.Nil(t, p)
		assert.ErrorIs(t, err, worker.ErrInvalidSize)
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestThreadPool_ConcurrentProducers(t *testing.T) {
	const producers = 10
	const perProducer = 10
	p := newPool(t, 4)

	var counter int64
	var g errgroup.Group
	for i := 0; i < producers; i++ {
		g.Go(func() error {
			for j := 0; j < perProducer; j++ {
				if err := p.Execute(func() { atomic.AddInt64(&counter, 1) }); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, p.Shutdown())

	assert.Equal(t, int64(producers*perProducer), atomic.LoadInt64(&counter))
}

func TestThreadPool_SlowAndFastJobs(t *testing.T) {
	p := newPool(t, 2)

	var mu sync.Mutex
	var recorded []string
	var aDone time.Time
	record := func(s string) {
		mu.Lock()
		recorded = append(recorded, s)
		if s == "A" {
			aDone = time.Now()
		}
		mu.Unlock()
	}

	require.NoError(t, p.Execute(func() {
		time.Sleep(200 * time.Millisecond)
		record("A")
	}))
	require.NoError(t, p.Execute(func() { record("B") }))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(recorded) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Shutdown())

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"A", "B"}, recorded)
	assert.Equal(t, "B", recorded[0], "B should not wait behind A on a two-worker pool")
	assert.Less(t, time.Since(aDone), 300*time.Millisecond)
}

func TestThreadPool_ExecuteAfterShutdown(t *testing.T) {
	p := newPool(t, 1)
	require.NoError(t, p.Shutdown())
	assert.True(t, p.IsShutdown())

	err := p.Execute(func() { t.Error("job ran after shutdown") })
	assert.ErrorIs(t, err, worker.ErrPoolClosed)
}

func TestThreadPool_NilJob(t *testing.T) {
	p := newPool(t, 1)
	defer p.Shutdown()
	assert.ErrorIs(t, p.Execute(nil), worker.ErrNilJob)
}

func TestThreadPool_ShutdownIdempotent(t *testing.T) {
	p := newPool(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Shutdown())
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(3), p.Stats().TerminatesSent)
}

func TestThreadPool_ExecuteRacingShutdown(t *testing.T) {
	p := newPool(t, 4)

	var accepted, ran int64
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				err := p.Execute(func() { atomic.AddInt64(&ran, 1) })
				switch {
				case err == nil:
					atomic.AddInt64(&accepted, 1)
				case errors.Is(err, worker.ErrPoolClosed):
					return nil
				default:
					return err
				}
			}
			return nil
		})
	}
	time.Sleep(time.Millisecond)
	require.NoError(t, p.Shutdown())
	require.NoError(t, g.Wait())

	// Every accepted job ran; nothing was stranded behind the Terminates.
	assert.Equal(t, atomic.LoadInt64(&accepted), atomic.LoadInt64(&ran))
}

func TestThreadPool_PanicIsContained(t *testing.T) {
	var handled int64
	p := newPool(t, 1, worker.WithPanicHandler(func(pe *worker.PanicError) {
		atomic.AddInt64(&handled, 1)
	}))

	var after int64
	require.NoError(t, p.Execute(func() { panic("bad job") }))
	require.NoError(t, p.Execute(func() { atomic.AddInt64(&after, 1) }))
	require.NoError(t, p.Shutdown())

	assert.Equal(t, int64(1), atomic.LoadInt64(&handled))
	assert.Equal(t, int64(1), atomic.LoadInt64(&after))
	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Panicked)
	assert.Equal(t, uint64(2), stats.Completed)
}

type countingRecorder struct {
	submitted, spawned, started, finished, panicked, exited atomic.Int64
}

func (r *countingRecorder) JobSubmitted() { r.submitted.Add(1) }
func (r *countingRecorder) WorkerStarted(int) { r.spawned.Add(1) }
func (r *countingRecorder) JobStarted(int) { r.started.Add(1) }
func (r *countingRecorder) WorkerExited(int) { r.exited.Add(1) }
func (r *countingRecorder) JobFinished(_ int, _ time.Duration, panicked bool) {
	r.finished.Add(1)
	if panicked {
		r.panicked.Add(1)
	}
}

func TestThreadPool_Recorder(t *testing.T) {
	rec := &countingRecorder{}
	p := newPool(t, 2, worker.WithRecorder(rec))
	assert.Equal(t, int64(2), rec.spawned.Load())

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Execute(func() {}))
	}
	require.NoError(t, p.Execute(func() { panic("x") }))
	require.NoError(t, p.Shutdown())

	assert.Equal(t, int64(6), rec.submitted.Load())
	assert.Equal(t, int64(6), rec.started.Load())
	assert.Equal(t, int64(6), rec.finished.Load())
	assert.Equal(t, int64(1), rec.panicked.Load())
	assert.Equal(t, int64(2), rec.exited.Load())
}
