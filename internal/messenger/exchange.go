package messenger

import (
	"context"
	"errors"
	"sync"

	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrExchangeNotFound = errors.New("exchange not found")

type exchange struct {
	Name        string
	Type        string
	Durable     bool
	AutoDeleted bool
	Internal    bool
	NoWait      bool
	Arguments   amqp.Table
}

const MarketplaceExchange = "marketplace.events"

var exchanges = map[string]exchange{
	MarketplaceExchange: {
		Name:        MarketplaceExchange,
		Type:        "topic",
		Durable:     true,
		AutoDeleted: false,
		Internal:    false,
		NoWait:      false,
		Arguments:   nil,
	},
}

// AmqpPublisher publishes events to a RabbitMQ topic exchange.
type AmqpPublisher struct {
	amqpUri  string
	exchange string
	prefix   string
	reliable bool

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
}

func NewAmqpPublisher(amqpUri, exchangeName, prefix string, reliable bool) (*AmqpPublisher, error) {
	if _, ok := exchanges[exchangeName]; !ok {
		return nil, ErrExchangeNotFound
	}

	return &AmqpPublisher{amqpUri: amqpUri, exchange: exchangeName, prefix: prefix, reliable: reliable}, nil
}

func (m *AmqpPublisher) Name() string {
	return "amqp"
}

func (m *AmqpPublisher) Publish(ctx context.Context, e event.Event) error {
	body, err := Encode(e)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ch, err := m.openChannel()
	if err != nil {
		return err
	}

	ex := exchanges[m.exchange]
	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDeleted, ex.Internal, ex.NoWait, ex.Arguments); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Declare")
		m.reset()
		return err
	}

	publishing := amqp.Publishing{
		Headers:      amqp.Table{"type": string(e.Type)},
		ContentType:  "application/json",
		MessageId:    e.Id,
		Timestamp:    e.Time,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}

	routingKey := RoutingKey(m.prefix, e.Type)
	if err := ch.Publish(ex.Name, routingKey, false, false, publishing); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Publish")
		m.reset()
		return err
	}

	if m.confirms != nil {
		if err := m.confirmOne(ctx, m.confirms); err != nil {
			return err
		}
	}

	zap.L().With(zap.String("exchange", ex.Name), zap.String("routingKey", routingKey)).Debug("[Queue] Published message")

	return nil
}

func (m *AmqpPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn, m.ch, m.confirms = nil, nil, nil

	return err
}

func (m *AmqpPublisher) openChannel() (*amqp.Channel, error) {
	if m.ch != nil && m.conn != nil && !m.conn.IsClosed() {
		return m.ch, nil
	}

	if m.conn == nil || m.conn.IsClosed() {
		conn, err := amqp.Dial(m.amqpUri)
		if err != nil {
			zap.L().With(zap.Error(err)).Error("[Queue] Failed to connect to RabbitMQ")
			return nil, err
		}
		m.conn = conn
	}

	ch, err := m.conn.Channel()
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to open channel")
		return nil, err
	}

	if m.reliable {
		if err := ch.Confirm(false); err != nil {
			zap.L().With(zap.Error(err)).Error("[Queue] Channel could not be put into confirm mode")
			_ = ch.Close()
			return nil, err
		}
		m.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}
	m.ch = ch

	return m.ch, nil
}

func (m *AmqpPublisher) reset() {
	if m.ch != nil {
		_ = m.ch.Close()
	}
	m.ch = nil
	m.confirms = nil
}

var ErrPublishNotConfirmed = errors.New("publish not confirmed")

func (m *AmqpPublisher) confirmOne(ctx context.Context, confirms <-chan amqp.Confirmation) error {
	zap.L().Debug("[Queue] Waiting for publish confirmation")

	select {
	case confirmed := <-confirms:
		if !confirmed.Ack {
			zap.L().Debug("[Queue] Publish failed")
			return ErrPublishNotConfirmed
		}
		zap.L().Debug("[Queue] Publish confirmed")
		return nil
	case <-ctx.Done():
		m.reset()
		return ctx.Err()
	}
}
