package events

import (
	"encoding/json"
	"sync"
	"time"

	"villa/internal/models"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationConfirmed = "reservation_confirmed"
	EventReservationCancelled = "reservation_cancelled"
	EventPaymentFailed        = "reservation_payment_failed"
)

// AllReservationEvents lists every type a relay subscriber should forward.
var AllReservationEvents = []string{
	EventReservationCreated,
	EventReservationConfirmed,
	EventReservationCancelled,
	EventPaymentFailed,
}

// ReservationEventPayload is the snapshot delivered to subscribers.
type ReservationEventPayload struct {
	ReservationID     int64   `json:"reservation_id"`
	ReservationNumber string  `json:"reservation_number"`
	Status            string  `json:"status"`
	PaymentStatus     string  `json:"payment_status,omitempty"`
	PaymentMethod     string  `json:"payment_method,omitempty"`
	CheckInDate       string  `json:"check_in_date"`
	NumNights         int     `json:"num_nights"`
	NumUnits          int     `json:"num_units"`
	TotalAmount       float64 `json:"total_amount"`
	CancellationFee   float64 `json:"cancellation_fee,omitempty"`
	CouponCode        string  `json:"coupon_code,omitempty"`
}

// PayloadFor snapshots a reservation.
func PayloadFor(r *models.Reservation) ReservationEventPayload {
	return ReservationEventPayload{
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		Status:            r.Status,
		PaymentStatus:     r.PaymentStatus,
		PaymentMethod:     r.PaymentMethod,
		CheckInDate:       models.FormatDate(r.CheckInDate),
		NumNights:         r.NumNights,
		NumUnits:          r.NumUnits,
		TotalAmount:       r.TotalAmount,
		CancellationFee:   r.CancellationFee,
		CouponCode:        r.CouponCode,
	}
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler receives failures returned by subscribers.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures. Publishing never fails
// because a subscriber did.
func (b *EventBus) OnError(h ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = h
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
