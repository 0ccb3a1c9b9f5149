package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/enrichment"
	"github.com/ratepro/backend/pkg/queue"
)

// EmailSender delivers one outbound email. The real provider integration
// lives behind this interface; LogSender is the default.
type EmailSender interface {
	Send(ctx context.Context, payload queue.EmailPayload) error
}

// LogSender logs emails instead of delivering them. Used when no provider
// key is configured, and in development.
type LogSender struct {
	Logger *zap.Logger
}

// Send logs the email envelope.
func (s *LogSender) Send(_ context.Context, payload queue.EmailPayload) error {
	s.Logger.Info("email (log sender)",
		zap.String("to", payload.RecipientEmail),
		zap.String("subject", payload.Subject),
		zap.String("type", payload.EmailType),
	)
	return nil
}

// Worker executes queued jobs. cmd/worker runs the blocking consume loop
// against the Redis queue; in inline mode the server calls Execute
// directly through the queue's runner hook.
type Worker struct {
	queue    *queue.RedisQueue
	pipeline *enrichment.Pipeline
	email    EmailSender
	logger   *zap.Logger
}

// New creates a worker. The queue may be nil for inline execution.
func New(q *queue.RedisQueue, pipeline *enrichment.Pipeline, email EmailSender, logger *zap.Logger) *Worker {
	return &Worker{queue: q, pipeline: pipeline, email: email, logger: logger}
}

// Execute runs one job. It is the queue.Runner for inline mode.
func (w *Worker) Execute(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeEnrichment:
		var payload queue.EnrichmentPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode enrichment payload: %w", err)
		}
		return w.pipeline.ProcessEnrichment(ctx, payload, job.Attempt)
	case queue.JobTypeActionGeneration:
		var payload queue.ActionGenerationPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode action payload: %w", err)
		}
		return w.pipeline.ProcessActionGeneration(ctx, payload)
	case queue.JobTypeEmail:
		var payload queue.EmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return w.email.Send(ctx, payload)
	default:
		w.logger.Warn("unknown job type, dropping", zap.String("type", string(job.Type)))
		return nil
	}
}

// Run consumes jobs until the context is cancelled. Failed jobs wait out
// their backoff before re-enqueueing so a flapping dependency is not
// hammered.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := w.Execute(ctx, job); err != nil {
			w.logger.Error("job failed",
				zap.String("job_id", job.ID),
				zap.String("type", string(job.Type)),
				zap.Int("attempt", job.Attempt),
				zap.Error(err),
			)
			select {
			case <-time.After(job.RetryDelay()):
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := w.queue.Retry(ctx, job); err != nil {
				w.logger.Error("retry failed", zap.Error(err), zap.String("job_id", job.ID))
			}
			continue
		}
		w.logger.Debug("job done", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	}
}
