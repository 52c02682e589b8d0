package worker

// Stats is a point-in-time view of a ThreadPool.
type Stats struct {
	// NumWorkers is fixed at construction.
	NumWorkers int `json:"num_workers"`

	// Submitted counts jobs accepted by Execute.
	Submitted uint64 `json:"submitted"`

	// Completed counts jobs that returned or panicked.
	Completed uint64 `json:"completed"`

	// Panicked counts jobs whose panic was recovered.  They are also counted
	// in Completed.
	Panicked uint64 `json:"panicked"`

	// Queued is the number of messages waiting in the queue, Terminate
	// messages included.
	Queued int `json:"queued"`

	// Busy is the number of workers currently running a job.
	Busy int `json:"busy"`

	// TerminatesSent and TerminatesConsumed both equal NumWorkers once
	// Shutdown has returned.
	TerminatesSent     uint64 `json:"terminates_sent"`
	TerminatesConsumed uint64 `json:"terminates_consumed"`

	Workers []WorkerStats `json:"workers"`
}

// WorkerStats describes a single worker.
type WorkerStats struct {
	WorkerID     int    `json:"worker_id"`
	State        string `json:"state"`
	JobsExecuted uint64 `json:"jobs_executed"`
	JobsPanicked uint64 `json:"jobs_panicked"`
	Terminated   bool   `json:"terminated"`
}
