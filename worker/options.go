package worker

import (
	"time"

	"github.com/firasghr/GoDispatcher/logger"
)

// Recorder observes pool activity.  metrics.Metrics satisfies it; the pool
// calls it from worker goroutines, so implementations must be safe for
// concurrent use.
type Recorder interface {
	JobSubmitted()
	WorkerStarted(workerID int)
	JobStarted(workerID int)
	JobFinished(workerID int, elapsed time.Duration, panicked bool)
	WorkerExited(workerID int)
}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted() {}
func (nopRecorder) WorkerStarted(int) {}
func (nopRecorder) JobStarted(int) {}
func (nopRecorder) JobFinished(int, time.Duration, bool) {}
func (nopRecorder) WorkerExited(int) {}

// PanicHandler receives every panic recovered from a job.
type PanicHandler func(*PanicError)

// Option configures a ThreadPool.
type Option func(*options)

type options struct {
	log          *logger.Logger
	recorder     Recorder
	panicHandler PanicHandler
}

func defaultOptions() options {
	return options{
		log:      logger.Discard(),
		recorder: nopRecorder{},
	}
}

// WithLogger sets the logger used for worker lifecycle messages.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRecorder attaches a Recorder to the pool.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPanicHandler replaces the default panic handler, which logs the panic
// and its stack at ERROR level.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) {
		o.panicHandler = h
	}
}
