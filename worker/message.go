package worker

// Job is a single unit of work.  It is invoked exactly once, on whichever
// worker goroutine dequeues it.  Anything the closure captures is shared with
// that goroutine, so the caller is responsible for making the captured state
// safe to use from another goroutine.
type Job func()

// Kind tells a worker what to do with a Message.
type Kind uint8

const (
	// KindJob delivers a Job to run.
	KindJob Kind = iota
	// KindTerminate tells the receiving worker to leave its loop.
	KindTerminate
)

func (k Kind) String() string {
	switch k {
	case KindJob:
		return "job"
	case KindTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Message is the envelope carried by the work queue.  Job is only set when
// Kind is KindJob.
type Message struct {
	Kind Kind
	Job  Job
}

// NewJob wraps job in a KindJob message.
func NewJob(job Job) Message {
	return Message{Kind: KindJob, Job: job}
}

// Terminate returns a KindTerminate message.
func Terminate() Message {
	return Message{Kind: KindTerminate}
}
