package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Seklfreak/cool-chat/internal/board"
	kafkago "github.com/segmentio/kafka-go"
)

// Producer publishes committed messages to Kafka for downstream consumers.
type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return &Producer{writer: w}
}

func (p *Producer) PublishCommitted(ctx context.Context, msg board.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(msg.ID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
