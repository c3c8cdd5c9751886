package outbox

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory outbox used by tests and the dev profile.
type MemoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	messages []Message
}

// NewMemoryRepository builds an empty in-memory outbox.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

// Append stores a new pending message.
func (r *MemoryRepository) Append(topic, key, payload string) Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := Message{
		ID:        r.nextID,
		Topic:     topic,
		Key:       key,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	r.nextID++
	r.messages = append(r.messages, msg)
	return msg
}

// PendingBatch returns up to limit pending messages in insertion order.
func (r *MemoryRepository) PendingBatch(_ context.Context, limit int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message
	for _, msg := range r.messages {
		if msg.Status != StatusPending {
			continue
		}
		out = append(out, msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkSent finalizes a published message.
func (r *MemoryRepository) MarkSent(_ context.Context, id int64) error {
	return r.setStatus(id, StatusSent)
}

// IncrementRetry bumps the retry counter after a failed publish.
func (r *MemoryRepository) IncrementRetry(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].RetryCount++
			r.messages[i].UpdatedAt = time.Now().UTC()
			break
		}
	}
	return nil
}

// MarkFailed parks a message that exhausted its retries.
func (r *MemoryRepository) MarkFailed(_ context.Context, id int64) error {
	return r.setStatus(id, StatusFailed)
}

func (r *MemoryRepository) setStatus(id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Status = status
			r.messages[i].UpdatedAt = time.Now().UTC()
			break
		}
	}
	return nil
}

// Snapshot copies the current messages for assertions.
func (r *MemoryRepository) Snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
