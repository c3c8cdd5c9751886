// Package outbox publishes transaction-creation notifications. Rows are
// written in the same database transaction as the records they announce, so
// a notification exists if and only if the record does; the relay then moves
// them to Kafka with at-least-once delivery.
package outbox

import (
	"context"
	"time"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message is one stored notification awaiting publication.
type Message struct {
	ID         int64
	Topic      string
	Key        string
	Payload    string
	Status     string
	RetryCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository persists outbox messages. The ledger store writes them; the
// relay drains them.
type Repository interface {
	PendingBatch(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id int64) error
	IncrementRetry(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// Producer publishes a message to the broker.
type Producer interface {
	Send(topic, key, payload string) error
}
