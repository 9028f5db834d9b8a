package historize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the target cluster and topic, grounded on
// yatesdr-warlogix/kafka.Config/Producer's fields.
type KafkaConfig struct {
	Brokers          []string
	Topic            string
	RequiredAcks     int
	MaxRetries       int
	AutoCreateTopics bool
}

// kafkaMessage is the JSON value written per record.
type kafkaMessage struct {
	PLC       string    `json:"plc"`
	Tag       string    `json:"tag"`
	Value     any       `json:"value"`
	Type      string    `json:"type,omitempty"`
	Writable  bool      `json:"writable"`
	Timestamp time.Time `json:"timestamp"`
}

// KafkaSink publishes Records to a Kafka topic with a batching writer,
// grounded on yatesdr-warlogix/kafka.Producer.getWriter's kafka.Writer
// construction.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink builds a writer for cfg.Topic. Unlike the teacher's
// Producer, which lazily creates one writer per topic on first use, this
// sink is scoped to a single topic per instance since historize.FanOut
// already composes multiple sinks.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("historize: kafka sink requires at least one broker")
	}
	acks := kafka.RequiredAcks(cfg.RequiredAcks)
	if cfg.RequiredAcks == 0 {
		acks = kafka.RequireOne
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           acks,
		Async:                  false,
		MaxAttempts:            cfg.MaxRetries,
		BatchSize:              100,
		BatchBytes:             1048576,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: cfg.AutoCreateTopics,
	}
	return &KafkaSink{writer: writer}, nil
}

// Publish writes rec as a single JSON-valued Kafka message keyed by
// "<PLC>/<Tag>", synchronously so delivery failure is visible to the caller.
func (s *KafkaSink) Publish(ctx context.Context, rec Record) error {
	msg := kafkaMessage{PLC: rec.PLC, Tag: rec.Tag, Value: rec.Value, Type: rec.Type, Writable: rec.Writable, Timestamp: rec.Timestamp}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("historize: marshal kafka record: %w", err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.PLC + "/" + rec.Tag),
		Value: value,
		Time:  rec.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("historize: kafka produce to %s: %w", s.writer.Topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
