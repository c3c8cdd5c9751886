package payout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/lodgepay/lodgepay/internal/ledger"
)

// Consumer subscribes to the transaction-creation topic and feeds each event
// into the orchestrator. Offsets are committed after Process returns, so
// delivery is at-least-once; Process is idempotent against that.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	service *Service
	logger  *slog.Logger
}

// NewConsumer joins the consumer group for the transaction topic.
func NewConsumer(brokers []string, groupID, topic string, service *Service, logger *slog.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: group, topic: topic, service: service, logger: logger}, nil
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, &groupHandler{service: c.service, logger: c.logger}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("consumer group session ended", "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	service *Service
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var evt ledger.CreatedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			h.logger.Error("drop undecodable transaction event", "offset", msg.Offset, "error", err)
			sess.MarkMessage(msg, "")
			continue
		}

		if err := h.service.Process(sess.Context(), evt.TransactionID); err != nil {
			// Outcomes are persisted on the record; the event is not retried.
			h.logger.Error("payout processing failed", "transaction_id", evt.TransactionID, "error", err)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
