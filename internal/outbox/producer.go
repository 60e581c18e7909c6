package outbox

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes activity events. It holds one writer for every topic in the
// event catalog and refuses any other topic.
type KafkaProducer struct {
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a writer for each catalog topic.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	writers := make(map[string]*kafka.Writer)
	for _, topic := range Topics() {
		writers[topic] = &kafka.Writer{
			Addr:  kafka.TCP(brokers...),
			Topic: topic,
			// Keys are family:<id> or owner:<id>; hashing them keeps one audience's
			// created and status_changed events on a single partition, in order.
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Compression:            kafka.Snappy,
			AllowAutoTopicCreation: true,
		}
	}
	return &KafkaProducer{writers: writers}
}

// WriteMessages writes msgs to topic.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer, ok := p.writers[topic]
	if !ok {
		return fmt.Errorf("topic %s is not an activity event topic", topic)
	}
	return writer.WriteMessages(ctx, msgs...)
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	var firstErr error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
