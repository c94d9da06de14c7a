// Package broker forwards reservation events to RabbitMQ.
package broker

import (
	"context"
	"fmt"
	"time"

	"villa/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// session is one open connection plus channel with the queue declared.
type session interface {
	Publish(ctx context.Context, queue string, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url, queue string, timeout time.Duration) (session, error)

// Publisher delivers events as persistent JSON messages on a durable queue.
// Each publish opens its own connection; event volume is a handful per booking.
// timeout bounds both the connect handshake and the publish, since the bus
// runs inside guest requests.
type Publisher struct {
	url     string
	queue   string
	timeout time.Duration
	dial    dialFunc
	logger  *zerolog.Logger
}

func NewPublisher(url, queue string, logger *zerolog.Logger) *Publisher {
	return &Publisher{
		url:     url,
		queue:   queue,
		timeout: 5 * time.Second,
		dial:    dialAMQP,
		logger:  logger,
	}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, body []byte) error {
	s, err := p.dial(p.url, p.queue, p.timeout)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := s.Publish(ctx, p.queue, msg); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", eventType, err)
	}
	return nil
}

// Handler adapts the publisher to the event bus. Failures are logged and
// returned so the bus error hook sees them too.
func (p *Publisher) Handler() events.EventHandler {
	return func(event *events.Event) error {
		err := p.Publish(context.Background(), event.Type, event.Payload)
		if err != nil {
			p.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to relay event to broker")
		}
		return err
	}
}

type amqpSession struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func dialAMQP(url, queue string, timeout time.Duration) (session, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &amqpSession{conn: conn, ch: ch}, nil
}

func (s *amqpSession) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	return s.ch.PublishWithContext(ctx, "", queue, false, false, msg)
}

func (s *amqpSession) Close() error {
	_ = s.ch.Close()
	return s.conn.Close()
}
