package infra

import (
	"fmt"

	"github.com/IBM/sarama"
)

// KafkaProducer wraps a synchronous Kafka producer. Synchronous sends keep
// the outbox relay honest: a message is only marked sent once the broker
// acknowledged it.
type KafkaProducer struct {
	producer sarama.SyncProducer
}

// NewKafkaProducer connects a SyncProducer to the given brokers.
func NewKafkaProducer(brokers []string) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaProducer{producer: producer}, nil
}

// Send publishes one message and waits for broker acknowledgement.
func (p *KafkaProducer) Send(topic, key, payload string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(payload),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close releases the underlying producer.
func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
