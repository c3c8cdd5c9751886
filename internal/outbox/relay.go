package outbox

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultInterval   = 200 * time.Millisecond
	defaultBatchSize  = 100
	defaultMaxRetries = 5
)

// Relay drains pending outbox rows to the broker on a ticker. Publishing is
// at-least-once: a crash between Send and MarkSent redelivers, and the
// consumers are idempotent against that.
type Relay struct {
	repo       Repository
	producer   Producer
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
	maxRetries int
}

// NewRelay builds an outbox relay with default pacing.
func NewRelay(repo Repository, producer Producer, logger *slog.Logger) *Relay {
	return &Relay{
		repo:       repo,
		producer:   producer,
		logger:     logger,
		interval:   defaultInterval,
		batchSize:  defaultBatchSize,
		maxRetries: defaultMaxRetries,
	}
}

// Start runs the relay loop until the context is cancelled.
func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep publishes one batch of pending messages. Exported so tests can
// drive the relay without the ticker.
func (r *Relay) Sweep(ctx context.Context) {
	messages, err := r.repo.PendingBatch(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("fetch pending outbox batch", "error", err)
		return
	}

	for _, msg := range messages {
		r.publish(ctx, msg)
	}
}

func (r *Relay) publish(ctx context.Context, msg Message) {
	if err := r.producer.Send(msg.Topic, msg.Key, msg.Payload); err != nil {
		r.logger.Error("publish outbox message", "id", msg.ID, "key", msg.Key, "error", err)
		if err := r.repo.IncrementRetry(ctx, msg.ID); err != nil {
			r.logger.Error("increment outbox retry", "id", msg.ID, "error", err)
			return
		}
		if msg.RetryCount+1 >= r.maxRetries {
			if err := r.repo.MarkFailed(ctx, msg.ID); err != nil {
				r.logger.Error("mark outbox message failed", "id", msg.ID, "error", err)
			} else {
				r.logger.Error("outbox message exhausted retries", "id", msg.ID, "key", msg.Key)
			}
		}
		return
	}

	if err := r.repo.MarkSent(ctx, msg.ID); err != nil {
		r.logger.Error("mark outbox message sent", "id", msg.ID, "error", err)
	}
}
