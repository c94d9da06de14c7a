package broker

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"villa/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	queue      string
	published  []amqp.Publishing
	publishErr error
	closed     bool
}

func (f *fakeSession) Publish(_ context.Context, queue string, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.queue = queue
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(s *fakeSession, dialErr error) *Publisher {
	logger := zerolog.New(io.Discard)
	p := NewPublisher("amqp://test", "reservation.events", &logger)
	p.dial = func(url, queue string, _ time.Duration) (session, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return s, nil
	}
	return p
}

func TestPublisherRelaysBusEvents(t *testing.T) {
	s := &fakeSession{}
	p := newTestPublisher(s, nil)

	bus := events.NewEventBus()
	bus.Subscribe(p.Handler(), events.AllReservationEvents...)
	require.NoError(t, bus.PublishJSON(events.EventReservationConfirmed, map[string]string{"reservation_number": "RES-1"}))

	require.Len(t, s.published, 1)
	msg := s.published[0]
	assert.Equal(t, "reservation.events", s.queue)
	assert.Equal(t, events.EventReservationConfirmed, msg.Type)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.JSONEq(t, `{"reservation_number":"RES-1"}`, string(msg.Body))
	assert.True(t, s.closed)
}

func TestPublisherErrors(t *testing.T) {
	t.Run("Dial", func(t *testing.T) {
		p := newTestPublisher(nil, errors.New("connection refused"))
		err := p.Publish(context.Background(), events.EventPaymentFailed, []byte("{}"))
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("Publish", func(t *testing.T) {
		s := &fakeSession{publishErr: errors.New("channel closed")}
		p := newTestPublisher(s, nil)
		err := p.Handler()(&events.Event{Type: events.EventReservationCancelled})
		assert.ErrorContains(t, err, "channel closed")
		assert.True(t, s.closed)
	})
}

func TestDialAMQPGivesUpOnSilentBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// Accept connections and never answer the AMQP handshake.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(io.Discard, conn)
			}()
		}
	}()

	start := time.Now()
	_, err = dialAMQP("amqp://guest:guest@"+ln.Addr().String()+"/", "reservation.events", 100*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
