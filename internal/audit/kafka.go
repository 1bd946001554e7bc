package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes audit events to a Kafka topic, keyed by session so a
// session's events stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
}

// NewKafkaSink connects a producer for the given brokers and topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client}, nil
}

func (s *KafkaSink) Write(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{Key: []byte(event.SessionID), Value: value}
	return s.client.ProduceSync(ctx, record).FirstErr()
}

// Close flushes pending records and shuts the producer down.
func (s *KafkaSink) Close() {
	s.client.Close()
}
