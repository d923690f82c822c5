// Package consumer reads telemetry events from Kafka and forwards them to a sink such as Loki.
package consumer

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// pushTimeout bounds a single sink push.
const pushTimeout = 10 * time.Second

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Sink receives raw event payloads.
type Sink interface {
	Push(ctx context.Context, raw []byte) error
}

// Consumer moves messages from a Reader to a Sink. Sink failures are logged and the message is
// dropped; telemetry is best-effort.
type Consumer struct {
	reader Reader
	sink   Sink
}

// New returns a Consumer.
func New(reader Reader, sink Sink) *Consumer {
	return &Consumer{reader: reader, sink: sink}
}

// NewKafkaReader returns a group reader for topic that commits offsets every second.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
}

// Run consumes until ctx is cancelled. It returns the number of messages forwarded.
func (c *Consumer) Run(ctx context.Context) int {
	forwarded := 0
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("consumer: stopped")
				return forwarded
			}
			log.Printf("consumer: kafka read error: %v", err)
			select {
			case <-ctx.Done():
				return forwarded
			case <-time.After(time.Second):
			}
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := c.sink.Push(pushCtx, msg.Value); err != nil {
			log.Printf("consumer: push failed (partition %d offset %d): %v", msg.Partition, msg.Offset, err)
		} else {
			forwarded++
		}
		cancel()
	}
}
