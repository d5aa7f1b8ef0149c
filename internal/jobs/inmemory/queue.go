package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/money-mirror/internal/jobs"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/google/uuid"
)

const (
	// DefaultWorkers is the number of jobs processed concurrently.
	DefaultWorkers = 2
	// DefaultMaxRetries applies to jobs published without MaxRetries.
	DefaultMaxRetries = 2
)

// Queue is a channel-backed Publisher and Consumer for single-instance
// deployments and tests.
type Queue struct {
	jobChan   chan *jobs.ProcessJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int
	now     func() time.Time
	backoff func(retry int) time.Duration
}

// NewQueue creates a queue holding up to bufferSize pending jobs, processed by
// workers goroutines. A zero workers uses DefaultWorkers.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		jobChan:   make(chan *jobs.ProcessJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		now:       time.Now,
		backoff: func(retry int) time.Duration {
			return time.Duration(retry) * time.Second
		},
	}
}

// PublishProcess implements the Publisher interface. It assigns an id and
// initial status, records the job and enqueues it.
func (q *Queue) PublishProcess(ctx context.Context, job *jobs.ProcessJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt and schedules a retry with linear backoff
// while retries remain.
func (q *Queue) processJob(ctx context.Context, job *jobs.ProcessJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()

	job.Status = jobs.JobStatusRunning
	startedAt := q.now().UTC()
	job.StartedAt = &startedAt
	q.save(ctx, job)

	result, err := handler(logger.WithContext(ctx, log), job)

	completedAt := q.now().UTC()
	job.CompletedAt = &completedAt
	job.Result = result

	if err != nil {
		job.Error = err.Error()
		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Job failed, retrying")

			retry := job.Clone()
			time.AfterFunc(q.backoff(job.RetryCount), func() {
				retry.Status = jobs.JobStatusPending
				retry.StartedAt = nil
				retry.CompletedAt = nil
				if err := q.PublishProcess(ctx, retry); err != nil {
					log.Error().Err(err).Msg("Failed to requeue job")
				}
			})
		} else {
			job.Status = jobs.JobStatusFailed
			log.Error().Err(err).Msg("Job failed")
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ProcessJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job")
	}
}

// Stop implements the Consumer interface. It waits for in-flight jobs until
// ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
