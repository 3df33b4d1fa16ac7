package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"auth-session-engine/internal/audit/domain"
)

// KafkaSink publishes events to a Kafka topic as JSON. The audit worker
// consumes the topic and persists events to Postgres.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a Kafka sink writing to the given topic. Returns nil
// when brokers or topic are empty, which disables the sink. Call Close when
// shutting down.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{writer: writer}
}

// Write serializes the event as JSON and publishes it keyed by user id, so
// one user's events stay ordered within a partition. Uses a short timeout so
// slow Kafka does not stall the dispatcher worker indefinitely.
func (s *KafkaSink) Write(ctx context.Context, e domain.Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.UserID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times or on nil.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
