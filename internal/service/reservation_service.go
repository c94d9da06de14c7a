package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"sync"
	"time"

	"villa/internal/apperr"
	"villa/internal/domain"
	"villa/internal/email"
	"villa/internal/events"
	"villa/internal/models"
	"villa/internal/pricing"

	"github.com/rs/zerolog"
)

// MaxNights caps a single stay.
const MaxNights = 30

// AvailabilityChecker verifies that a stay still fits the inventory.
type AvailabilityChecker interface {
	CheckBookable(ctx context.Context, checkIn time.Time, nights, units int) error
}

type ReservationSettings struct {
	Inventory      int
	CouponDiscount float64
	Currency       string
	Location       *time.Location
}

type ReservationService struct {
	repo         domain.Repository
	availability AvailabilityChecker
	prices       pricing.Pricer
	catalog      *pricing.MealCatalog
	gateway      domain.PaymentGateway
	sync         domain.SyncDispatcher
	notifier     *Notifier
	composer     *email.Composer
	events       domain.EventPublisher
	settings     ReservationSettings
	now          func() time.Time
	logger       *zerolog.Logger

	numberMu   sync.Mutex
	lastNumber int64
}

func NewReservationService(
	repo domain.Repository,
	availability AvailabilityChecker,
	prices pricing.Pricer,
	catalog *pricing.MealCatalog,
	gateway domain.PaymentGateway,
	dispatcher domain.SyncDispatcher,
	notifier *Notifier,
	composer *email.Composer,
	eventBus domain.EventPublisher,
	settings ReservationSettings,
	logger *zerolog.Logger,
) *ReservationService {
	if settings.Inventory <= 0 {
		settings.Inventory = models.DefaultInventory
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.Currency == "" {
		settings.Currency = "jpy"
	}
	return &ReservationService{
		repo:         repo,
		availability: availability,
		prices:       prices,
		catalog:      catalog,
		gateway:      gateway,
		sync:         dispatcher,
		notifier:     notifier,
		composer:     composer,
		events:       eventBus,
		settings:     settings,
		now:          time.Now,
		logger:       logger,
	}
}

// CreateReservationInput is what a guest submits from the booking form.
// Meal unit prices are ignored and re-read from the catalog.
type CreateReservationInput struct {
	GuestName     string                `json:"guest_name"`
	Email         string                `json:"email"`
	Phone         string                `json:"phone"`
	Address       string                `json:"address"`
	Notes         string                `json:"notes"`
	CheckInDate   string                `json:"check_in_date"`
	NumNights     int                   `json:"num_nights"`
	NumUnits      int                   `json:"num_units"`
	Guests        models.GuestCounts    `json:"guest_counts"`
	MealPlans     models.MealSelections `json:"meal_plans"`
	CouponCode    string                `json:"coupon_code"`
	PaymentMethod string                `json:"payment_method"`
}

// QuoteInput prices a stay without creating anything.
type QuoteInput struct {
	CheckInDate string                `json:"check_in_date"`
	NumNights   int                   `json:"num_nights"`
	NumUnits    int                   `json:"num_units"`
	Guests      models.GuestCounts    `json:"guest_counts"`
	MealPlans   models.MealSelections `json:"meal_plans"`
	CouponCode  string                `json:"coupon_code"`
}

type CreateReservationResult struct {
	Reservation  *models.Reservation `json:"reservation"`
	Cost         pricing.StayCost    `json:"cost"`
	ClientSecret string              `json:"client_secret,omitempty"`
	Steps        []StepResult        `json:"steps,omitempty"`
}

type PaymentResult struct {
	Reservation *models.Reservation `json:"reservation"`
	Steps       []StepResult        `json:"steps,omitempty"`
}

type LookupResult struct {
	Reservation      *models.Reservation `json:"reservation"`
	DaysUntilCheckIn int                 `json:"days_until_check_in"`
	CancellationFee  float64             `json:"cancellation_fee"`
	Cancellable      bool                `json:"cancellable"`
}

type CancelResult struct {
	Reservation     *models.Reservation `json:"reservation"`
	CancellationFee float64             `json:"cancellation_fee"`
	Steps           []StepResult        `json:"steps,omitempty"`
}

func (s *ReservationService) MealPlans() []pricing.MealPlan {
	return s.catalog.Plans()
}

// Quote validates the stay and returns its cost.
func (s *ReservationService) Quote(ctx context.Context, in QuoteInput) (pricing.StayCost, error) {
	checkIn, err := s.validateStay(in.CheckInDate, in.NumNights, in.NumUnits, in.Guests)
	if err != nil {
		return pricing.StayCost{}, err
	}
	meals, err := s.prepareMeals(in.MealPlans, in.Guests, checkIn, in.NumNights, in.NumUnits)
	if err != nil {
		return pricing.StayCost{}, err
	}
	discount, err := s.couponDiscount(ctx, in.CouponCode)
	if err != nil {
		return pricing.StayCost{}, err
	}
	return pricing.ComputeStayCost(s.prices, pricing.StayRequest{
		CheckIn:        checkIn,
		Nights:         in.NumNights,
		Units:          in.NumUnits,
		Meals:          meals,
		CouponDiscount: discount,
	})
}

// Create validates and stores a reservation. Onsite payment confirms it at
// once; credit payment leaves it pending behind a payment intent.
func (s *ReservationService) Create(ctx context.Context, in CreateReservationInput) (*CreateReservationResult, error) {
	guestEmail, err := validateContact(in)
	if err != nil {
		return nil, err
	}
	if in.PaymentMethod != models.PaymentMethodCredit && in.PaymentMethod != models.PaymentMethodOnsite {
		return nil, apperr.Validation("payment_method must be credit or onsite")
	}
	checkIn, err := s.validateStay(in.CheckInDate, in.NumNights, in.NumUnits, in.Guests)
	if err != nil {
		return nil, err
	}
	meals, err := s.prepareMeals(in.MealPlans, in.Guests, checkIn, in.NumNights, in.NumUnits)
	if err != nil {
		return nil, err
	}
	coupon := strings.TrimSpace(in.CouponCode)
	discount, err := s.couponDiscount(ctx, coupon)
	if err != nil {
		return nil, err
	}

	if err := s.availability.CheckBookable(ctx, checkIn, in.NumNights, in.NumUnits); err != nil {
		return nil, err
	}

	cost, err := pricing.ComputeStayCost(s.prices, pricing.StayRequest{
		CheckIn:        checkIn,
		Nights:         in.NumNights,
		Units:          in.NumUnits,
		Meals:          meals,
		CouponDiscount: discount,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &models.Reservation{
		ReservationNumber: s.nextNumber(now),
		GuestName:         strings.TrimSpace(in.GuestName),
		Email:             guestEmail,
		Phone:             strings.TrimSpace(in.Phone),
		Address:           strings.TrimSpace(in.Address),
		Notes:             strings.TrimSpace(in.Notes),
		CheckInDate:       checkIn,
		NumNights:         in.NumNights,
		NumUnits:          in.NumUnits,
		Guests:            in.Guests,
		RoomRate:          cost.RoomTotal,
		MealPlans:         meals,
		TotalMealPrice:    cost.MealTotal,
		TotalAmount:       cost.TotalAmount,
		DiscountAmount:    cost.Discount,
		PaymentAmount:     cost.TotalAfterDiscount,
		CouponCode:        coupon,
		Status:            models.StatusPending,
		PaymentStatus:     models.PaymentStatusPending,
		PaymentMethod:     in.PaymentMethod,
	}
	if in.PaymentMethod == models.PaymentMethodOnsite {
		r.Status = models.StatusConfirmed
	}

	if err := s.repo.CreateReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	s.publish(events.EventReservationCreated, r)

	result := &CreateReservationResult{Reservation: r, Cost: cost}

	if in.PaymentMethod == models.PaymentMethodOnsite {
		result.Steps = s.afterConfirmed(ctx, r)
		return result, nil
	}

	intent, err := s.gateway.CreateIntent(ctx, chargeAmount(r.PaymentAmount), s.settings.Currency, map[string]string{
		"reservation_number": r.ReservationNumber,
	})
	if err != nil {
		s.releaseAfterPaymentFailure(ctx, r)
		return nil, apperr.Upstream("payment", err)
	}
	if err := s.repo.SetPaymentIntent(ctx, r.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("store payment intent: %w", err)
	}
	r.PaymentIntentID = intent.ID
	result.ClientSecret = intent.ClientSecret
	return result, nil
}

// ConfirmPayment reads the intent status after the guest completed checkout.
func (s *ReservationService) ConfirmPayment(ctx context.Context, number, guestEmail string) (*PaymentResult, error) {
	r, err := s.find(ctx, number, guestEmail)
	if err != nil {
		return nil, err
	}
	if r.PaymentMethod != models.PaymentMethodCredit || r.PaymentIntentID == "" {
		return nil, apperr.Validation("reservation has no card payment")
	}
	if models.IsCancelledStatus(r.Status) {
		return nil, apperr.ErrAlreadyCancelled
	}
	if r.PaymentStatus == models.PaymentStatusSucceeded {
		return &PaymentResult{Reservation: r}, nil
	}

	intent, err := s.gateway.GetIntent(ctx, r.PaymentIntentID)
	if err != nil {
		return nil, apperr.Upstream("payment", err)
	}

	switch intent.Status {
	case domain.IntentSucceeded:
		if err := s.repo.UpdatePaymentState(ctx, r.ID, models.PaymentStatusSucceeded, models.StatusPaid); err != nil {
			return nil, fmt.Errorf("mark paid: %w", err)
		}
		r.PaymentStatus = models.PaymentStatusSucceeded
		r.Status = models.StatusPaid
		return &PaymentResult{Reservation: r, Steps: s.afterConfirmed(ctx, r)}, nil
	case domain.IntentCanceled, domain.IntentRequiresMethod:
		s.releaseAfterPaymentFailure(ctx, r)
		return &PaymentResult{Reservation: r}, nil
	default:
		return nil, apperr.ErrPaymentIncomplete.WithMessage("payment is " + intent.Status)
	}
}

// Lookup finds a reservation by number and guest email and previews the
// fee a cancellation would cost right now.
func (s *ReservationService) Lookup(ctx context.Context, number, guestEmail string) (*LookupResult, error) {
	r, err := s.find(ctx, number, guestEmail)
	if err != nil {
		return nil, err
	}
	res := &LookupResult{
		Reservation:      r,
		DaysUntilCheckIn: pricing.DaysUntilCheckIn(r.CheckInDate, s.now(), s.settings.Location),
		Cancellable:      !models.IsCancelledStatus(r.Status),
	}
	if res.Cancellable {
		res.CancellationFee = pricing.FeeForReservation(r, s.now(), s.settings.Location)
	} else {
		res.CancellationFee = r.CancellationFee
	}
	return res, nil
}

// Cancel is the guest self-service cancellation. It is one-way.
func (s *ReservationService) Cancel(ctx context.Context, number, guestEmail string) (*CancelResult, error) {
	r, err := s.find(ctx, number, guestEmail)
	if err != nil {
		return nil, err
	}
	if models.IsCancelledStatus(r.Status) {
		return nil, apperr.ErrAlreadyCancelled
	}

	now := s.now()
	fee := pricing.FeeForReservation(r, now, s.settings.Location)
	if err := s.repo.CancelReservation(ctx, r.ID, models.StatusCustomerCancelled, fee, now); err != nil {
		return nil, err
	}
	r.Status = models.StatusCustomerCancelled
	r.CancellationFee = fee
	r.CancelledAt = &now

	s.publish(events.EventReservationCancelled, r)

	var steps []StepResult
	if msg, err := s.composer.Cancellation(r); err != nil {
		steps = append(steps, stepResult(StepGuestEmail, err))
	} else {
		_, err := s.notifier.SendOnce(ctx, r.ID, models.EmailTypeCancellation, models.RecipientGuest, msg)
		steps = append(steps, stepResult(StepGuestEmail, err))
	}
	if msg, err := s.composer.CancellationAdmin(r); err != nil {
		steps = append(steps, stepResult(StepAdminEmail, err))
	} else {
		_, err := s.notifier.SendOnce(ctx, r.ID, models.EmailTypeCancellation, models.RecipientAdmin, msg)
		steps = append(steps, stepResult(StepAdminEmail, err))
	}
	s.logSteps(r, steps)

	return &CancelResult{Reservation: r, CancellationFee: fee, Steps: steps}, nil
}

// afterConfirmed runs the side effects of a confirmed booking. Each step is
// attempted regardless of the others.
func (s *ReservationService) afterConfirmed(ctx context.Context, r *models.Reservation) []StepResult {
	s.publish(events.EventReservationConfirmed, r)

	var steps []StepResult
	if err := s.repo.MarkSyncPending(ctx, r.ID); err != nil {
		steps = append(steps, stepResult(StepSync, err))
	} else {
		r.SyncStatus = models.SyncStatusPending
		steps = append(steps, stepResult(StepSync, s.sync.EnqueueReservation(ctx, r)))
	}

	if msg, err := s.composer.Confirmation(r); err != nil {
		steps = append(steps, stepResult(StepGuestEmail, err))
	} else {
		_, err := s.notifier.SendOnce(ctx, r.ID, models.EmailTypeConfirmation, models.RecipientGuest, msg)
		steps = append(steps, stepResult(StepGuestEmail, err))
	}
	if msg, err := s.composer.ConfirmationAdmin(r); err != nil {
		steps = append(steps, stepResult(StepAdminEmail, err))
	} else {
		_, err := s.notifier.SendOnce(ctx, r.ID, models.EmailTypeConfirmation, models.RecipientAdmin, msg)
		steps = append(steps, stepResult(StepAdminEmail, err))
	}

	s.logSteps(r, steps)
	return steps
}

func (s *ReservationService) releaseAfterPaymentFailure(ctx context.Context, r *models.Reservation) {
	if err := s.repo.UpdatePaymentState(ctx, r.ID, models.PaymentStatusFailed, models.StatusCancelled); err != nil {
		s.logger.Error().Err(err).Str("reservation", r.ReservationNumber).Msg("Failed to release reservation after payment failure")
		return
	}
	r.PaymentStatus = models.PaymentStatusFailed
	r.Status = models.StatusCancelled
	s.publish(events.EventPaymentFailed, r)
}

// nextNumber returns RES-<epoch ms>, bumped past the last issued value so two
// bookings in the same millisecond stay distinct.
func (s *ReservationService) nextNumber(now time.Time) string {
	s.numberMu.Lock()
	defer s.numberMu.Unlock()
	n := now.UnixMilli()
	if n <= s.lastNumber {
		n = s.lastNumber + 1
	}
	s.lastNumber = n
	return fmt.Sprintf("%s-%d", models.ReservationNumberPrefix, n)
}

func (s *ReservationService) find(ctx context.Context, number, guestEmail string) (*models.Reservation, error) {
	number = strings.TrimSpace(number)
	guestEmail = strings.TrimSpace(guestEmail)
	if number == "" || guestEmail == "" {
		return nil, apperr.Validation("reservation number and email are required")
	}
	r, err := s.repo.GetReservationByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	// A wrong email looks exactly like a wrong number.
	if !strings.EqualFold(r.Email, guestEmail) {
		return nil, apperr.ErrReservationNotFound
	}
	return r, nil
}

func (s *ReservationService) couponDiscount(ctx context.Context, code string) (float64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, nil
	}
	if _, err := s.repo.GetAffiliateByCoupon(ctx, code); err != nil {
		if errors.Is(err, apperr.ErrAffiliateNotFound) {
			return 0, apperr.ErrInvalidCoupon
		}
		return 0, err
	}
	return s.settings.CouponDiscount, nil
}

func (s *ReservationService) validateStay(checkInDate string, nights, units int, guests models.GuestCounts) (time.Time, error) {
	checkIn, err := models.ParseDate(checkInDate)
	if err != nil {
		return time.Time{}, apperr.Validation("check_in_date must be YYYY-MM-DD")
	}
	if nights < 1 || nights > MaxNights {
		return time.Time{}, apperr.Validation(fmt.Sprintf("num_nights must be between 1 and %d", MaxNights))
	}
	if units < 1 || units > s.settings.Inventory {
		return time.Time{}, apperr.Validation(fmt.Sprintf("num_units must be between 1 and %d", s.settings.Inventory))
	}
	today := models.Today(s.now(), s.settings.Location)
	if checkIn.Before(today) {
		return time.Time{}, apperr.Validation("check_in_date is in the past")
	}

	for i := 0; i < nights; i++ {
		date := models.FormatDate(checkIn.AddDate(0, 0, i))
		for unit := 1; unit <= units; unit++ {
			if guests.For(date, unit).Total() < 1 {
				return time.Time{}, apperr.Validation(fmt.Sprintf("unit %d on %s has no guests", unit, date))
			}
		}
	}
	return checkIn, nil
}

func (s *ReservationService) prepareMeals(in models.MealSelections, guests models.GuestCounts, checkIn time.Time, nights, units int) (models.MealSelections, error) {
	last := checkIn.AddDate(0, 0, nights-1)
	for date, byUnit := range in {
		d, err := models.ParseDate(date)
		if err != nil || d.Before(checkIn) || d.After(last) {
			return nil, apperr.Validation(fmt.Sprintf("meal date %s is not a night of the stay", date))
		}
		for unit := range byUnit {
			if unit < 1 || unit > units {
				return nil, apperr.Validation(fmt.Sprintf("meal unit %d is not part of the stay", unit))
			}
		}
	}
	meals, err := s.catalog.Reprice(in)
	if err != nil {
		return nil, err
	}
	if err := pricing.CheckGuestLimits(meals, guests); err != nil {
		return nil, err
	}
	return meals, nil
}

func (s *ReservationService) publish(eventType string, r *models.Reservation) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, events.PayloadFor(r)); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (s *ReservationService) logSteps(r *models.Reservation, steps []StepResult) {
	for _, st := range steps {
		if !st.OK {
			s.logger.Warn().Str("reservation", r.ReservationNumber).Str("step", st.Step).Str("error", st.Error).Msg("Reservation side effect failed")
		}
	}
}

// validateContact checks the guest fields and returns the bare email address.
func validateContact(in CreateReservationInput) (string, error) {
	if strings.TrimSpace(in.GuestName) == "" {
		return "", apperr.Validation("guest_name is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return "", apperr.Validation("phone is required")
	}
	return bareAddress(in.Email)
}

// bareAddress strips any display name so only addr-spec is stored and used as
// the SMTP recipient.
func bareAddress(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.Validation("email is invalid")
	}
	return addr.Address, nil
}

// chargeAmount converts a yen amount to the integer the payment API expects.
func chargeAmount(amount float64) int64 {
	return int64(math.Round(amount))
}
