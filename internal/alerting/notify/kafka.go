package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of kafka.Writer used for publishing.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel publishes messages as JSON records for downstream consumers.
type KafkaChannel struct {
	writer KafkaWriter
	topic  string
}

// NewKafkaChannel constructs a channel writing to topic on brokers.
func NewKafkaChannel(brokers []string, topic string) (*KafkaChannel, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka channel: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka channel: empty topic")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaChannel{writer: writer, topic: topic}, nil
}

// NewKafkaChannelWithWriter wraps an existing writer.
func NewKafkaChannelWithWriter(writer KafkaWriter, topic string) (*KafkaChannel, error) {
	if writer == nil {
		return nil, errors.New("kafka channel: nil writer")
	}
	return &KafkaChannel{writer: writer, topic: topic}, nil
}

// Send publishes msg keyed by its id.
func (k *KafkaChannel) Send(ctx context.Context, msg Message) error {
	if k == nil || k.writer == nil {
		return errors.New("kafka channel: nil writer")
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	record := kafka.Message{Key: []byte(msg.ID), Value: value, Time: time.Now().UTC()}
	if err := k.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("kafka channel: topic %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaChannel) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
