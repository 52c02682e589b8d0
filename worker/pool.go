// Package worker provides a fixed-size goroutine pool that drains a shared
// FIFO queue of jobs and shuts down without losing queued work.
package worker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ThreadPool manages a fixed number of workers that consume one shared work
// queue.
//
// Design choices:
//   - size workers are started once in NewThreadPool and live until
//     Shutdown; the pool never grows or shrinks.
//   - The queue is unbounded, so Execute never blocks on a busy pool.  Jobs
//     are handed out in submission order to whichever worker is idle.
//   - Shutdown enqueues one Terminate message per worker behind all pending
//     jobs and only then joins the workers.  A Terminate meant "for" one
//     worker may be taken by another, so joining a worker right after sending
//     it a Terminate could wait forever on a worker that never sees one.
type ThreadPool struct {
	workers []*Worker
	sender  *Sender
	rx      *SharedReceiver
	opts    options

	// mu orders Execute against Shutdown: no job may be enqueued after the
	// Terminate messages.
	mu       sync.RWMutex
	closed   bool
	shutdown sync.Once
	err      error

	submitted      atomic.Uint64
	terminatesSent atomic.Uint64
}

// NewThreadPool creates a ThreadPool with size workers ready to receive jobs.
// It returns ErrInvalidSize, and starts nothing, if size is not positive.
func NewThreadPool(size int, opts ...Option) (*ThreadPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	sender, receiver := NewWorkQueue()
	p := &ThreadPool{
		workers: make([]*Worker, 0, size),
		sender:  sender,
		rx:      NewSharedReceiver(receiver),
		opts:    o,
	}
	for id := 0; id < size; id++ {
		p.workers = append(p.workers, newWorker(id, p.rx, &p.opts))
	}
	p.opts.log.Infof("thread pool started with %d workers", size)
	return p, nil
}

// Execute enqueues job and returns without waiting for it to run.  It
// returns ErrPoolClosed once Shutdown has been called.
func (p *ThreadPool) Execute(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	if err := p.sender.Send(NewJob(job)); err != nil {
		return fmt.Errorf("worker: execute: %w", err)
	}
	p.submitted.Add(1)
	p.opts.recorder.JobSubmitted()
	return nil
}

// Shutdown stops accepting jobs, lets the workers finish everything already
// queued, and waits for every worker to exit.  There is no timeout: a job
// that never returns blocks Shutdown forever.
//
// Shutdown is safe to call more than once; later calls wait for the first to
// finish and return the same result.
func (p *ThreadPool) Shutdown() error {
	p.shutdown.Do(func() {
		p.err = p.teardown()
	})
	return p.err
}

func (p *ThreadPool) teardown() error {
	p.mu.Lock()
	p.closed = true
	var errs []error
	for range p.workers {
		if err := p.sender.Send(Terminate()); err != nil {
			errs = append(errs, fmt.Errorf("worker: send terminate: %w", err))
			break
		}
		p.terminatesSent.Add(1)
	}
	p.mu.Unlock()
	if len(errs) > 0 {
		// Workers short of a Terminate would never exit; closing the
		// receiver makes them fail out of Recv instead.
		p.rx.Close()
	}

	for _, w := range p.workers {
		p.opts.log.Infof("Shutting down worker %d", w.id)
		if err := w.Join(); err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", w.id, err))
		}
	}

	p.sender.Close()
	p.rx.Close()
	p.opts.log.Info("thread pool stopped")
	return errors.Join(errs...)
}

// IsShutdown reports whether Shutdown has been called.
func (p *ThreadPool) IsShutdown() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Size returns the number of workers.
func (p *ThreadPool) Size() int {
	return len(p.workers)
}

// Stats returns a snapshot of the pool counters.  Fields are read without a
// common lock, so they may be slightly inconsistent while jobs are running.
func (p *ThreadPool) Stats() Stats {
	s := Stats{
		NumWorkers:     len(p.workers),
		Submitted:      p.submitted.Load(),
		Queued:         p.rx.Len(),
		TerminatesSent: p.terminatesSent.Load(),
		Workers:        make([]WorkerStats, len(p.workers)),
	}
	for i, w := range p.workers {
		ws := WorkerStats{
			WorkerID:     w.id,
			State:        w.State().String(),
			JobsExecuted: w.executed.Load(),
			JobsPanicked: w.panicked.Load(),
			Terminated:   w.terminated.Load(),
		}
		s.Completed += ws.JobsExecuted
		s.Panicked += ws.JobsPanicked
		if ws.Terminated {
			s.TerminatesConsumed++
		}
		if w.State() == StateExecuting {
			s.Busy++
		}
		s.Workers[i] = ws
	}
	return s
}
