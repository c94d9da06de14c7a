package domain

import (
	"context"
	"errors"
	"time"

	"villa/internal/models"
)

type ReservationRepository interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetReservationByNumber(ctx context.Context, number string) (*models.Reservation, error)
	ListReservationsOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
	ListReservationsByCheckIn(ctx context.Context, dates []time.Time, statuses []string) ([]models.Reservation, error)
	ListReservationsByCheckOut(ctx context.Context, checkOut time.Time, statuses []string) ([]models.Reservation, error)
	ListReservationsCheckInBetween(ctx context.Context, from, to time.Time, statuses []string) ([]models.Reservation, error)
	ListReservationsBySyncStatus(ctx context.Context, syncStatus string) ([]models.Reservation, error)
	ListReservationsByCoupon(ctx context.Context, couponCode string) ([]models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, from []string, to string) error
	UpdatePaymentState(ctx context.Context, id int64, paymentStatus, status string) error
	SetPaymentIntent(ctx context.Context, id int64, intentID string) error
	CancelReservation(ctx context.Context, id int64, status string, fee float64, at time.Time) error
	MarkSyncPending(ctx context.Context, id int64) error
	MarkSynced(ctx context.Context, id int64, at time.Time) error
	IncrementPendingCount(ctx context.Context, id int64, at time.Time) (int, error)
}

type LogRepository interface {
	HasEmailLog(ctx context.Context, reservationID int64, emailType, recipientType string) (bool, error)
	CreateEmailLog(ctx context.Context, entry *models.EmailSendLog) error
	HasReminderLog(ctx context.Context, reservationID int64, reminderType string) (bool, error)
	CreateReminderLog(ctx context.Context, entry *models.ReminderLog) error
}

type AffiliateRepository interface {
	CreateAffiliate(ctx context.Context, a *models.Affiliate) error
	GetAffiliateByCode(ctx context.Context, code string) (*models.Affiliate, error)
	GetAffiliateByCoupon(ctx context.Context, coupon string) (*models.Affiliate, error)
	ListAffiliates(ctx context.Context) ([]models.Affiliate, error)
	CreatePayout(ctx context.Context, p *models.AffiliatePayout) error
	ListPayouts(ctx context.Context, affiliateID int64) ([]models.AffiliatePayout, error)
}

// Repository is the full datastore surface.
type Repository interface {
	ReservationRepository
	LogRepository
	AffiliateRepository
}

// CalendarCache stores computed calendar windows. A miss returns nil, nil.
type CalendarCache interface {
	GetCalendar(ctx context.Context, key string) ([]models.CalendarDay, error)
	SetCalendar(ctx context.Context, key string, days []models.CalendarDay) error
	Invalidate(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncDispatcher hands a reservation over for delivery to the PMS.
type SyncDispatcher interface {
	EnqueueReservation(ctx context.Context, r *models.Reservation) error
}

type EmailMessage struct {
	To      []string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

const (
	IntentSucceeded      = "succeeded"
	IntentCanceled       = "canceled"
	IntentRequiresMethod = "requires_payment_method"
)

type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*PaymentIntent, error)
	UpdateIntentAmount(ctx context.Context, id string, amount int64) (*PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

// PMSReservation is the body sent to the property-management system.
type PMSReservation struct {
	ReservationNumber string                `json:"reservation_number"`
	GuestName         string                `json:"guest_name"`
	Email             string                `json:"email"`
	Phone             string                `json:"phone"`
	CheckInDate       string                `json:"check_in_date"`
	CheckOutDate      string                `json:"check_out_date"`
	NumNights         int                   `json:"num_nights"`
	NumUnits          int                   `json:"num_units"`
	Guests            models.GuestCounts    `json:"guest_counts"`
	MealPlans         models.MealSelections `json:"meal_plans"`
	TotalAmount       float64               `json:"total_amount"`
	PaymentAmount     float64               `json:"payment_amount"`
	PaymentMethod     string                `json:"payment_method"`
	PaymentStatus     string                `json:"payment_status"`
	Notes             string                `json:"notes,omitempty"`
}

var (
	// ErrPMSOutcomeUnknown marks a request that may have reached the PMS.
	// The PMS does not deduplicate, so it must not be resent.
	ErrPMSOutcomeUnknown = errors.New("pms outcome unknown")
	// ErrPMSRejected marks a 4xx answer; the same body will not be accepted later.
	ErrPMSRejected = errors.New("pms rejected reservation")
)

type PMSClient interface {
	CreateReservation(ctx context.Context, payload PMSReservation) error
}
