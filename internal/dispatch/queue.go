package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/logging"
)

// QueueConfig bounds the worker pool. Group jobs get a narrower ceiling
// because each fans out over a whole member list.
type QueueConfig struct {
	ContactWorkers int
	GroupWorkers   int
	QueueSize      int
}

func (c *QueueConfig) applyDefaults() {
	if c.ContactWorkers <= 0 {
		c.ContactWorkers = 8
	}
	if c.GroupWorkers <= 0 {
		c.GroupWorkers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
}

// Queue accepts per-contact and per-group jobs and runs them through the
// Handler with bounded, per-kind concurrency. Each job's billing unit is
// independently atomic; jobs only share the balance-row serialization
// inside the ledger.
type Queue struct {
	handler *Handler
	cfg     QueueConfig

	workerID   string
	contactCh  chan ContactJob
	groupCh    chan GroupJob
	contactSem *semaphore.Weighted
	groupSem   *semaphore.Weighted

	wg sync.WaitGroup
}

func NewQueue(handler *Handler, cfg QueueConfig) *Queue {
	cfg.applyDefaults()

	hostname, _ := os.Hostname()
	workerUUID, _ := uuid.NewRandom()

	return &Queue{
		handler:    handler,
		cfg:        cfg,
		workerID:   fmt.Sprintf("%s-%s", hostname, workerUUID.String()),
		contactCh:  make(chan ContactJob, cfg.QueueSize),
		groupCh:    make(chan GroupJob, cfg.QueueSize),
		contactSem: semaphore.NewWeighted(int64(cfg.ContactWorkers)),
		groupSem:   semaphore.NewWeighted(int64(cfg.GroupWorkers)),
	}
}

// EnqueueContact queues a per-contact job, respecting ctx cancellation
// rather than blocking forever on a full queue.
func (q *Queue) EnqueueContact(ctx context.Context, job ContactJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	select {
	case q.contactCh <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueGroup queues a per-group job.
func (q *Queue) EnqueueGroup(ctx context.Context, job GroupJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	select {
	case q.groupCh <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the per-kind dispatcher loops. It returns immediately;
// Shutdown drains in-flight jobs.
func (q *Queue) Start(ctx context.Context) {
	logCtx := logging.ContextWithWorkerID(ctx, q.workerID)
	slog.InfoContext(logCtx, "Dispatch queue starting",
		slog.Int("contact_workers", q.cfg.ContactWorkers),
		slog.Int("group_workers", q.cfg.GroupWorkers),
	)

	// Detach the loops from the caller's lifecycle: shutdown is signaled
	// by closing the job channels, never by context cancellation, so jobs
	// accepted before a SIGTERM still drain.
	loopCtx := context.WithoutCancel(logCtx)

	q.wg.Add(2)
	go q.runContactLoop(loopCtx)
	go q.runGroupLoop(loopCtx)
}

func (q *Queue) runContactLoop(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.contactCh {
		if err := q.contactSem.Acquire(ctx, 1); err != nil {
			slog.WarnContext(ctx, "Contact dispatcher stopping", slog.Any("error", err))
			return
		}
		q.wg.Add(1)
		go func(job ContactJob) {
			defer q.wg.Done()
			defer q.contactSem.Release(1)
			q.runJob(ctx, "contact", job.JobID, func() error {
				return q.handler.HandleContact(ctx, job)
			})
		}(job)
	}
}

func (q *Queue) runGroupLoop(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.groupCh {
		if err := q.groupSem.Acquire(ctx, 1); err != nil {
			slog.WarnContext(ctx, "Group dispatcher stopping", slog.Any("error", err))
			return
		}
		q.wg.Add(1)
		go func(job GroupJob) {
			defer q.wg.Done()
			defer q.groupSem.Release(1)
			q.runJob(ctx, "group", job.JobID, func() error {
				return q.handler.HandleGroup(ctx, job)
			})
		}(job)
	}
}

// runJob executes one job with panic recovery. Handler errors are typed
// rejections already reported to the submitter; they must not kill a worker.
func (q *Queue) runJob(ctx context.Context, kind, jobID string, fn func() error) {
	logCtx := logging.ContextWithJobID(ctx, jobID)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(logCtx, "PANIC recovered in dispatch job",
				slog.String("kind", kind), slog.Any("panic_info", r))
		}
	}()

	if err := fn(); err != nil {
		slog.WarnContext(logCtx, "Job rejected",
			slog.String("kind", kind), slog.Any("reason", err))
		return
	}
	slog.DebugContext(logCtx, "Job completed", slog.String("kind", kind))
}

// Shutdown stops accepting jobs and waits for in-flight ones to drain.
func (q *Queue) Shutdown(ctx context.Context) error {
	close(q.contactCh)
	close(q.groupCh)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "Dispatch queue drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
