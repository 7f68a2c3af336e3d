// Package jobs defines asynchronous voice capture jobs and the queue and
// status store contracts that run them.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the AI call is in flight.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the result was written to the ledger.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the capture produced nothing. Captures are
	// never retried automatically.
	JobStatusFailed JobStatus = "failed"
	// JobStatusDiscarded indicates the result arrived for a target that was
	// reset or removed meanwhile.
	JobStatusDiscarded JobStatus = "discarded"
)

var (
	// ErrDiscarded is wrapped by handlers whose result was dropped on purpose.
	ErrDiscarded = errors.New("capture result discarded")

	// ErrJobNotFound is returned by JobStore lookups.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned when publishing to a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// CaptureJob is one recorded utterance waiting to be transcribed into its
// target.
type CaptureJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"jobId"`

	Target ledger.Target `json:"target"`

	// Generation is the ledger generation the capture started on.
	Generation uint64 `json:"generation"`

	// Audio is dropped once the job finishes and is never stored.
	Audio    []byte `json:"-"`
	MIMEType string `json:"mimeType"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Error is the user-facing notice text when the job failed.
	Error string `json:"error,omitempty"`

	// Result is set by the handler when the ledger was updated.
	Result *ledger.Applied `json:"result,omitempty"`
}

// Clone copies the job without its audio.
func (j *CaptureJob) Clone() *CaptureJob {
	c := *j
	c.Audio = nil
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return &c
}

// Done reports whether the job reached a final status.
func (j *CaptureJob) Done() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusDiscarded:
		return true
	}
	return false
}

// Publisher enqueues capture jobs.
type Publisher interface {
	PublishCapture(ctx context.Context, job *CaptureJob) error
}

// Consumer runs a handler for every published job.
type Consumer interface {
	// Start launches the workers. It does not block.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. It may set job.Result and job.Error; a
// returned error marks the job failed, or discarded if it wraps ErrDiscarded.
type JobHandler func(ctx context.Context, job *CaptureJob) error

// JobStore keeps job status so clients can poll it.
type JobStore interface {
	SaveJob(ctx context.Context, job *CaptureJob) error
	GetJob(ctx context.Context, jobID string) (*CaptureJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*CaptureJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// TargetKey matches ledger.Target.Key.
	TargetKey string
	Status    JobStatus
	Limit     int
	Offset    int
}
