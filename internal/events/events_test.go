package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"villa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int
	bus.Subscribe(func(event *Event) error {
		received = event
		callCount++
		return nil
	}, EventReservationCreated)

	require.NoError(t, bus.PublishJSON(EventReservationCreated, map[string]string{"foo": "bar"}))

	assert.Equal(t, 1, callCount)
	assert.Equal(t, EventReservationCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEventBusMultipleTypes(t *testing.T) {
	bus := NewEventBus()
	var seen []string
	bus.Subscribe(func(e *Event) error { seen = append(seen, e.Type); return nil }, AllReservationEvents...)

	for _, eventType := range AllReservationEvents {
		bus.Publish(&Event{Type: eventType})
	}
	bus.Publish(&Event{Type: "unrelated"})

	assert.Equal(t, AllReservationEvents, seen)
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	var second int
	var reported error

	bus.OnError(func(_ *Event, err error) { reported = err })
	bus.Subscribe(func(_ *Event) error { return errors.New("broker down") }, EventPaymentFailed)
	bus.Subscribe(func(_ *Event) error { second++; return nil }, EventPaymentFailed)

	require.NoError(t, bus.PublishJSON(EventPaymentFailed, nil))
	assert.EqualError(t, reported, "broker down")
	assert.Equal(t, 1, second)
}

func TestNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventReservationCreated, nil))
}

func TestPayloadFor(t *testing.T) {
	r := &models.Reservation{
		ID:                7,
		ReservationNumber: "RES-1",
		Status:            models.StatusCancelled,
		CheckInDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		NumNights:         2,
		NumUnits:          1,
		TotalAmount:       50000,
		CancellationFee:   25000,
	}
	p := PayloadFor(r)
	assert.Equal(t, "2026-08-01", p.CheckInDate)
	assert.Equal(t, 25000.0, p.CancellationFee)
	assert.Equal(t, "RES-1", p.ReservationNumber)
}
