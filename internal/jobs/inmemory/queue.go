package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue is an in-memory job publisher and consumer backed by a buffered
// channel and a fixed worker pool. Jobs run once; failures are recorded,
// never retried.
type Queue struct {
	jobChan   chan *jobs.CaptureJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	log       zerolog.Logger
	closed    bool
}

// QueueOptions tunes NewQueue.
type QueueOptions struct {
	// BufferSize is how many jobs may wait before PublishCapture blocks.
	BufferSize int
	// Workers is the number of jobs processed concurrently.
	Workers int
	Logger  zerolog.Logger
}

func NewQueue(store jobs.JobStore, opts QueueOptions) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 32
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.CaptureJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   opts.Workers,
		log:       opts.Logger,
	}
}

// PublishCapture assigns an id if missing, records the job as pending and
// enqueues it.
func (q *Queue) PublishCapture(ctx context.Context, job *jobs.CaptureJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.Status = jobs.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishCapture: save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

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
			// Drain what was accepted before Stop so no capture is left
			// holding its target.
			for {
				select {
				case job := <-q.jobChan:
					q.processJob(ctx, job, handler)
				default:
					return
				}
			}
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *jobs.CaptureJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	startedAt := time.Now()
	job.StartedAt = &startedAt
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.Audio = nil

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case errors.Is(err, jobs.ErrDiscarded):
		job.Status = jobs.JobStatusDiscarded
	default:
		job.Status = jobs.JobStatusFailed
		if job.Error == "" {
			job.Error = err.Error()
		}
	}

	q.log.Debug().
		Str("job_id", job.JobID).
		Str("target", job.Target.String()).
		Str("status", string(job.Status)).
		Dur("duration", completedAt.Sub(startedAt)).
		Msg("Capture job finished")

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.CaptureJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record job status")
	}
}

// Stop stops accepting jobs, lets workers finish queued ones and waits.
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

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
