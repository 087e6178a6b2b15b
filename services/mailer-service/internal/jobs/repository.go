package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
)

// Job is one unit of mail work claimed from the mail_jobs table.
type Job struct {
	ID             int64
	Key            string
	IdempotencyKey string
	Payload        []byte
	Attempts       int
	MaxAttempts    int
	NextRunAt      time.Time
	Traceparent    string
	Tracestate     string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enqueue records a job; duplicates on the idempotency key are dropped. Used
// by the cancelled-event replay path; the booking service inserts the same
// row directly on the happy path.
func (r *Repository) Enqueue(ctx context.Context, key, idempotencyKey string, payload []byte) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO mail_jobs (job_key, idempotency_key, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, idempotencyKey, payload, traceparent, tracestate)
	return err
}

// FetchDue claims a batch of runnable jobs. SKIP LOCKED makes the claim
// exclusive across concurrent workers for the duration of the transaction.
func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, job_key, idempotency_key, payload, attempts, max_attempts, next_run_at, traceparent, tracestate
		FROM mail_jobs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Key, &j.IdempotencyKey, &j.Payload, &j.Attempts, &j.MaxAttempts, &j.NextRunAt, &j.Traceparent, &j.Tracestate); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE mail_jobs
		SET status = 'processed', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// MarkFailed bumps the attempt counter and either reschedules the job or
// parks it in the failed state once attempts are exhausted.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE mail_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}
