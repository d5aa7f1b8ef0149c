package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/pipeline"
)

// ErrJobNotFound is returned by JobStore lookups for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ProcessJob is one asynchronous /process-data request.
type ProcessJob struct {
	JobID          string             `json:"job_id"`
	Institution    domain.Institution `json:"institution"`
	FilePaths      []string           `json:"file_paths"`
	ForceReprocess bool               `json:"force_reprocess"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result holds the counters of the last attempt, including a failed one.
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Request returns the pipeline request the job runs.
func (j *ProcessJob) Request() pipeline.Request {
	return pipeline.Request{
		Institution:    j.Institution,
		FilePaths:      j.FilePaths,
		ForceReprocess: j.ForceReprocess,
	}
}

// Clone returns a deep copy so stored jobs are not shared with workers.
func (j *ProcessJob) Clone() *ProcessJob {
	c := *j
	c.FilePaths = append([]string(nil), j.FilePaths...)
	if j.Result != nil {
		r := *j.Result
		r.Warnings = append([]string(nil), j.Result.Warnings...)
		c.Result = &r
	}
	return &c
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishProcess(ctx context.Context, job *ProcessJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler runs one job. A returned error marks the attempt as failed and
// may trigger a retry; the result is recorded either way.
type JobHandler func(ctx context.Context, job *ProcessJob) (*pipeline.Result, error)

// JobStore keeps job state for status lookups.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessJob) error
	GetJob(ctx context.Context, jobID string) (*ProcessJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Institution domain.Institution
	Status      JobStatus

	Limit  int
	Offset int
}
