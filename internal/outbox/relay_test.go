package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/lodgepay/lodgepay/internal/logging"
)

type fakeProducer struct {
	failures int
	sent     []Message
}

func (p *fakeProducer) Send(topic, key, payload string) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, Message{Topic: topic, Key: key, Payload: payload})
	return nil
}

func newTestRelay(repo *MemoryRepository, producer *fakeProducer) *Relay {
	return NewRelay(repo, producer, logging.Discard())
}

func TestSweepPublishesAndMarksSent(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Append("lodgepay.transactions", "tx-1", `{"transactionId":"tx-1"}`)
	repo.Append("lodgepay.transactions", "tx-2", `{"transactionId":"tx-2"}`)

	producer := &fakeProducer{}
	newTestRelay(repo, producer).Sweep(context.Background())

	if len(producer.sent) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(producer.sent))
	}
	for _, msg := range repo.Snapshot() {
		if msg.Status != StatusSent {
			t.Fatalf("message %d not marked sent: %s", msg.ID, msg.Status)
		}
	}
}

func TestSweepRetriesThenRecovers(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Append("lodgepay.transactions", "tx-1", `{}`)

	producer := &fakeProducer{failures: 2}
	relay := newTestRelay(repo, producer)
	ctx := context.Background()

	relay.Sweep(ctx)
	relay.Sweep(ctx)
	if msg := repo.Snapshot()[0]; msg.Status != StatusPending || msg.RetryCount != 2 {
		t.Fatalf("expected pending with 2 retries, got %+v", msg)
	}

	relay.Sweep(ctx)
	if msg := repo.Snapshot()[0]; msg.Status != StatusSent {
		t.Fatalf("expected sent after broker recovery, got %+v", msg)
	}
}

func TestSweepParksMessageAfterMaxRetries(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Append("lodgepay.transactions", "tx-1", `{}`)

	producer := &fakeProducer{failures: 100}
	relay := newTestRelay(repo, producer)
	ctx := context.Background()

	for i := 0; i < defaultMaxRetries; i++ {
		relay.Sweep(ctx)
	}
	if msg := repo.Snapshot()[0]; msg.Status != StatusFailed {
		t.Fatalf("expected failed after exhausting retries, got %+v", msg)
	}

	// Parked messages stay out of subsequent sweeps.
	relay.Sweep(ctx)
	if got := repo.Snapshot()[0].RetryCount; got != defaultMaxRetries {
		t.Fatalf("expected retry count to stay at %d, got %d", defaultMaxRetries, got)
	}
}
