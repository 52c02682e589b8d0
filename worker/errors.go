package worker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned by NewThreadPool when asked for fewer than one
	// worker.  A pool without workers can never make progress.
	ErrInvalidSize = errors.New("worker: pool size must be greater than zero")

	// ErrPoolClosed is returned by Execute once Shutdown has begun.
	ErrPoolClosed = errors.New("worker: pool is closed")

	// ErrNilJob is returned by Execute when job is nil.
	ErrNilJob = errors.New("worker: job is nil")

	// ErrChannelClosed is returned by the work queue when the opposite end has
	// gone away.  The pool owns both ends until teardown completes, so seeing
	// this error means the pool's lifecycle is broken.
	ErrChannelClosed = errors.New("worker: channel closed")
)

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	WorkerID int
	Value    interface{}
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %d: job panicked: %v", e.WorkerID, e.Value)
}
