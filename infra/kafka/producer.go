package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes book events to the feed topic, keyed by market.
type Producer struct {
	writer MessageWriter
	ser    Serializer
}

func NewProducer(brokers []string, topic string, ser Serializer) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}, ser)
}

func NewProducerWithWriter(w MessageWriter, ser Serializer) *Producer {
	return &Producer{writer: w, ser: ser}
}

func (p *Producer) Publish(ctx context.Context, e BookEvent) error {
	value, err := p.ser.Encode(e)
	if err != nil {
		return errors.Wrap(err, "encode book event")
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Market),
		Value: value,
		Time:  e.Time,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(p.ser.ContentType())},
		},
	})
	return errors.Wrap(err, "write book event")
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
