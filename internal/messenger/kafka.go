package messenger

import (
	"context"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by token so that events of
// one token land on one partition in order.
type KafkaPublisher struct {
	writer kafkaWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Name() string {
	return "kafka"
}

func (p *KafkaPublisher) Publish(ctx context.Context, e event.Event) error {
	body, err := Encode(e)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(PartitionKey(e)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "id", Value: []byte(e.Id)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		zap.L().With(zap.Error(err), zap.String("topic", p.topic)).Error("[Queue] Failed to write message")
		return err
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// PartitionKey is the token slug for listing events and the principal for
// balance events.
func PartitionKey(e event.Event) string {
	switch payload := e.Payload.(type) {
	case event.TokenListed:
		return entity.NewTokenKey(payload.Collection, payload.TokenId).Slug()
	case event.TokenSaleCancelled:
		return entity.NewTokenKey(payload.Collection, payload.TokenId).Slug()
	case event.TokenSold:
		return entity.NewTokenKey(payload.Collection, payload.TokenId).Slug()
	case event.ProceedsWithdrawn:
		return payload.Principal.String()
	case event.OwnerBalanceWithdrawn:
		return payload.Principal.String()
	case event.OperatorTransferred:
		return "operator"
	default:
		return string(e.Type)
	}
}
