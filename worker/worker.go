package worker

import (
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/firasghr/GoDispatcher/logger"
)

// State is a worker's position in its lifecycle.
type State int32

const (
	// StateIdle means the worker is waiting in Recv.
	StateIdle State = iota
	// StateExecuting means the worker is running a job.
	StateExecuting
	// StateTerminated means the loop has exited.  No transition leaves it.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateExecuting:
		return "EXECUTING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Worker is one long-lived goroutine of a ThreadPool.
type Worker struct {
	id   int
	rx   *SharedReceiver
	log  *logger.Logger
	opts *options

	state      atomic.Int32
	executed   atomic.Uint64
	panicked   atomic.Uint64
	terminated atomic.Bool // consumed a Terminate message

	done chan struct{}
	err  error // written before done is closed
}

// newWorker starts the worker loop in a new goroutine and returns without
// waiting for it to run.
func newWorker(id int, rx *SharedReceiver, opts *options) *Worker {
	w := &Worker{
		id:   id,
		rx:   rx,
		log:  opts.log.With("worker", id),
		opts: opts,
		done: make(chan struct{}),
	}
	w.state.Store(int32(StateIdle))
	opts.recorder.WorkerStarted(id)
	go w.run()
	return w
}

// ID returns the worker's index in its pool.
func (w *Worker) ID() int { return w.id }

// State returns the worker's current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Join blocks until the worker loop has exited and returns the reason it
// exited abnormally, or nil after a Terminate message.
func (w *Worker) Join() error {
	<-w.done
	return w.err
}

func (w *Worker) run() {
	defer func() {
		w.state.Store(int32(StateTerminated))
		w.opts.recorder.WorkerExited(w.id)
		close(w.done)
	}()

	for {
		msg, err := w.rx.Recv()
		if err != nil {
			w.log.Errorf("worker %d: receive failed: %v", w.id, err)
			w.err = err
			return
		}

		switch msg.Kind {
		case KindJob:
			w.log.Debugf("Worker %d got a job; executing.", w.id)
			w.execute(msg.Job)
		case KindTerminate:
			w.log.Debugf("Worker %d was told to terminate.", w.id)
			w.terminated.Store(true)
			return
		}
	}
}

// execute runs job on the calling goroutine.  The receive lock has already
// been released, so other workers keep dequeuing while this job runs.
func (w *Worker) execute(job Job) {
	w.state.Store(int32(StateExecuting))
	w.opts.recorder.JobStarted(w.id)
	start := time.Now()
	panicked := false

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			w.panicked.Add(1)
			w.handlePanic(&PanicError{WorkerID: w.id, Value: r, Stack: debug.Stack()})
		}
		w.executed.Add(1)
		w.opts.recorder.JobFinished(w.id, time.Since(start), panicked)
		w.state.Store(int32(StateIdle))
	}()

	job()
}

func (w *Worker) handlePanic(pe *PanicError) {
	if w.opts.panicHandler != nil {
		w.opts.panicHandler(pe)
		return
	}
	w.log.Errorf("%v\n%s", pe, pe.Stack)
}
