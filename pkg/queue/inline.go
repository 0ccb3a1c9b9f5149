package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes a single job. The worker package provides the real one.
type Runner func(ctx context.Context, job *Job) error

// InlineQueue runs jobs in-process when the durable queue is disabled
// (ENABLE_QUEUES=false). Jobs run in a goroutine detached from the request
// context so the submitter is acknowledged first; failures are logged and
// never propagated to the caller.
type InlineQueue struct {
	runner Runner
	logger *zap.Logger
}

// NewInlineQueue creates an inline queue. The runner is set separately
// because the worker depends on repositories constructed after the queue.
func NewInlineQueue(logger *zap.Logger) *InlineQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InlineQueue{logger: logger}
}

// SetRunner installs the job executor. Must be called before any Enqueue.
func (q *InlineQueue) SetRunner(r Runner) { q.runner = r }

// Enqueue executes the job asynchronously, best-effort.
func (q *InlineQueue) Enqueue(ctx context.Context, jobType JobType, tenantID uuid.UUID, payload interface{}) error {
	job, err := newJob(jobType, tenantID, payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if q.runner == nil {
		return fmt.Errorf("inline queue has no runner")
	}
	go func() {
		// Detached from the request context: the job must outlive the
		// request that enqueued it.
		if err := q.runner(context.Background(), job); err != nil {
			q.logger.Error("inline job failed",
				zap.String("job_id", job.ID),
				zap.String("type", string(job.Type)),
				zap.Error(err),
			)
		}
	}()
	return nil
}
