package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer is a thin wrapper around segmentio/kafka-go Writer bound to one topic.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
	}}
}

// Write publishes value keyed by key; equal keys land on the same partition.
func (p *Producer) Write(ctx context.Context, key, value []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *Producer) Close() error { return p.w.Close() }
