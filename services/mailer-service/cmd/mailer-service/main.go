package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/mailer-service/internal/consumer"
	"github.com/md-rashed-zaman/slotbook/services/mailer-service/internal/email"
	"github.com/md-rashed-zaman/slotbook/services/mailer-service/internal/inbox"
	"github.com/md-rashed-zaman/slotbook/services/mailer-service/internal/jobs"
	"github.com/md-rashed-zaman/slotbook/services/mailer-service/internal/outbox"
)

const cancelledTopic = "booking.appointment.cancelled.v1"

func main() {
	service := config.String("SERVICE_NAME", "mailer-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)

	jobRepo := jobs.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	worker := jobs.NewWorker(pool, jobRepo, outboxRepo, logger, jobs.WorkerOptions{
		Interval:    config.Duration("JOB_POLL_INTERVAL", 2*time.Second),
		BatchSize:   config.Int("JOB_BATCH_SIZE", 50),
		BaseBackoff: config.Duration("JOB_BASE_BACKOFF", 30*time.Second),
		MaxBackoff:  config.Duration("JOB_MAX_BACKOFF", 15*time.Minute),
	})
	worker.Register("CancelationMail", func(_ context.Context, payload []byte) error {
		return email.SendCancelation(sender, payload)
	})
	go worker.Run(ctx)

	brokers := config.String("KAFKA_BROKERS", "")

	// Recovery path: a cancelled event from the booking outbox re-creates
	// the mail job if the direct enqueue never landed. The idempotency key
	// makes replays harmless.
	cancelledConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "mailer-service"),
		Topic:   cancelledTopic,
	}, func(ctx context.Context, msg kafka.Message) error {
		var notice struct {
			AppointmentID string `json:"appointment_id"`
		}
		if err := json.Unmarshal(msg.Value, &notice); err != nil {
			return fmt.Errorf("decode cancelled event: %w", err)
		}
		if notice.AppointmentID == "" {
			return fmt.Errorf("cancelled event missing appointment_id")
		}
		key := "CancelationMail:" + notice.AppointmentID
		return jobRepo.Enqueue(ctx, "CancelationMail", key, msg.Value)
	})
	go cancelledConsumer.Run(ctx)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("mailer service stopped")
}
