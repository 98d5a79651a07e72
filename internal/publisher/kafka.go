package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"copytrader/config"
	"copytrader/internal/memorystore"

	"github.com/segmentio/kafka-go"
)

// FillEvent is the message published for every order placed for a copier.
type FillEvent struct {
	CopierID string `json:"copier_id"`
	LeadID   string `json:"lead_id"`
	memorystore.OrderRecord
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// FillPublisher publishes FillEvents to Kafka, keyed by copier id so the
// fills of one copier stay ordered within a partition.
type FillPublisher struct {
	writer messageWriter
	Topic  string
}

func NewFillPublisher(cfg config.KafkaConfig) *FillPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &FillPublisher{writer: writer, Topic: cfg.Topic}
}

func (p *FillPublisher) Publish(ctx context.Context, e FillEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal fill event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.CopierID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *FillPublisher) Close() error {
	return p.writer.Close()
}
