package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// channel is the part of an AMQP channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher publishes domain events to a durable topic exchange, using
// the event type as routing key.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	mu       sync.Mutex
	channel  channel
	exchange string
	log      zerolog.Logger
	now      func() time.Time
}

func NewAMQPPublisher(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{
		channel:  ch,
		exchange: exchange,
		log:      log.With().Str("exchange", exchange).Logger(),
		now:      time.Now,
	}, nil
}

// Publish sends payload wrapped in a Message with routingKey as its type.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	msg, err := NewMessage(routingKey, payload, p.now())
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.log.Debug().Str("routing_key", routingKey).Int("bytes", len(body)).Msg("event published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
