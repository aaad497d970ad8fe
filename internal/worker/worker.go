// Package worker processes queued interview completion jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sync-hire/backend/internal/interviews"
	"github.com/sync-hire/backend/internal/models"
	"github.com/sync-hire/backend/pkg/queue"
)

// CompletionProcessor marks interviews completed from agent completion jobs.
type CompletionProcessor struct {
	repo    *interviews.Repository
	queue   *queue.Queue
	backoff time.Duration
	logger  *zap.Logger
}

// NewCompletionProcessor creates a completion processor.
func NewCompletionProcessor(repo *interviews.Repository, q *queue.Queue, logger *zap.Logger) *CompletionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionProcessor{repo: repo, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one completion job.
func (p *CompletionProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeCompletion {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.CompletionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	iv, err := p.repo.GetByID(ctx, payload.InterviewID)
	if err != nil {
		return fmt.Errorf("interview not found: %s", payload.InterviewID)
	}
	if iv.Status == models.InterviewStatusCompleted {
		p.logger.Info("interview already completed", zap.String("interview_id", iv.ID.String()))
		return nil
	}

	if err := p.repo.MarkCompleted(ctx, payload.InterviewID, payload.DurationMinutes, payload.CompletedAt); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	p.logger.Info("interview completed",
		zap.String("interview_id", payload.InterviewID.String()),
		zap.Float64("duration_minutes", payload.DurationMinutes))
	return nil
}

// Run consumes completion jobs until ctx is cancelled. Failed jobs are
// retried with backoff and land in the DLQ after too many attempts.
func (p *CompletionProcessor) Run(ctx context.Context) {
	p.logger.Info("completion worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("completion worker stopped")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.Process(ctx, job); err != nil {
			p.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if rerr := p.queue.Retry(ctx, job); rerr != nil {
				p.logger.Error("retry failed", zap.String("job_id", job.ID), zap.Error(rerr))
			}
			p.sleep(ctx)
		}
	}
}

// sleep waits out the retry backoff, returning early on shutdown.
func (p *CompletionProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
