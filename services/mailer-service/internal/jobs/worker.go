package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/mailer-service/internal/outbox"
)

// Handler executes one job payload. A nil error marks the job processed; any
// error reschedules it with backoff until attempts run out.
type Handler func(ctx context.Context, payload []byte) error

type Worker struct {
	pool     *db.Pool
	repo     *Repository
	outbox   *outbox.Repository
	logger   *slog.Logger
	handlers map[string]Handler

	interval    time.Duration
	batchSize   int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

type WorkerOptions struct {
	Interval    time.Duration
	BatchSize   int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, ob *outbox.Repository, logger *slog.Logger, opts WorkerOptions) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 15 * time.Minute
	}
	return &Worker{
		pool:        pool,
		repo:        repo,
		outbox:      ob,
		logger:      logger,
		handlers:    make(map[string]Handler),
		interval:    opts.Interval,
		batchSize:   opts.BatchSize,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
	}
}

func (w *Worker) Register(key string, h Handler) {
	w.handlers[key] = h
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("job batch failed", "error", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	jobs, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return fmt.Errorf("fetch due: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	var processed []int64
	for _, job := range jobs {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

		if err := dispatch(jobCtx, w.handlers, job.Key, job.Payload); err != nil {
			attempts := job.Attempts + 1
			w.logger.Warn("job attempt failed",
				"job_id", job.ID,
				"job_key", job.Key,
				"attempts", attempts,
				"error", err)

			next := time.Now().Add(nextBackoff(w.baseBackoff, w.maxBackoff, attempts))
			if err := w.repo.MarkFailed(jobCtx, tx, job.ID, attempts, job.MaxAttempts, next, err.Error()); err != nil {
				return fmt.Errorf("mark failed: %w", err)
			}
			job.Attempts = attempts
			if attempts >= job.MaxAttempts {
				w.logger.Error("job exhausted attempts",
					"job_id", job.ID,
					"job_key", job.Key,
					"idempotency_key", job.IdempotencyKey)
				if err := w.emitEvent(jobCtx, tx, outbox.EventCancelationDLQ, job); err != nil {
					return err
				}
			}
			continue
		}

		processed = append(processed, job.ID)
		if err := w.emitEvent(jobCtx, tx, outbox.EventCancelationSent, job); err != nil {
			return err
		}
	}

	if err := w.repo.MarkProcessed(ctx, tx, processed); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return tx.Commit(ctx)
}

func (w *Worker) emitEvent(ctx context.Context, tx pgx.Tx, eventType string, job Job) error {
	err := w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "mail_job",
		AggregateID:   job.IdempotencyKey,
		EventType:     eventType,
		Payload:       marshalJobEvent(job),
	})
	if err != nil {
		return fmt.Errorf("outbox insert: %w", err)
	}
	return nil
}

// dispatch looks up the handler for a job key and runs it.
func dispatch(ctx context.Context, handlers map[string]Handler, key string, payload []byte) error {
	h, ok := handlers[key]
	if !ok {
		return fmt.Errorf("no handler registered for job key %q", key)
	}
	return h(ctx, payload)
}

// nextBackoff grows the delay exponentially with the attempt count, capped at
// max.
func nextBackoff(base, max time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

type jobEventPayload struct {
	JobID          int64  `json:"job_id"`
	JobKey         string `json:"job_key"`
	IdempotencyKey string `json:"idempotency_key"`
	Attempts       int    `json:"attempts"`
}

func marshalJobEvent(job Job) []byte {
	b, _ := json.Marshal(jobEventPayload{
		JobID:          job.ID,
		JobKey:         job.Key,
		IdempotencyKey: job.IdempotencyKey,
		Attempts:       job.Attempts,
	})
	return b
}
