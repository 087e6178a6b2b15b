package jobs

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Queue enqueues mail work onto the shared mail_jobs table. Enqueue returns
// once the row is durably recorded; the mailer worker claims and delivers it.
type Queue struct {
	pool *db.Pool
}

func NewQueue(pool *db.Pool) *Queue {
	return &Queue{pool: pool}
}

// Enqueue is idempotent per job: the Kafka replay of the cancelled event may
// race this direct insert, and the idempotency key collapses the two.
func (q *Queue) Enqueue(ctx context.Context, job model.QueuedJob) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := q.pool.Exec(ctx, `
		INSERT INTO mail_jobs (job_key, idempotency_key, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, job.Key, job.IdempotencyKey, job.Payload, traceparent, tracestate)
	return err
}
