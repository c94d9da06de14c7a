package availability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"villa/internal/apperr"
	"villa/internal/domain"
	"villa/internal/models"
	"villa/internal/pricing"

	"github.com/rs/zerolog"
)

// MaxRangeDays bounds a single calendar query.
const MaxRangeDays = 400

type WindowPricer interface {
	pricing.Pricer
	Window() (time.Time, time.Time)
}

type Service struct {
	repo      domain.ReservationRepository
	prices    WindowPricer
	cache     domain.CalendarCache
	inventory int
	logger    *zerolog.Logger

	// generation counts invalidations; a load that raced one is not cached.
	generation atomic.Int64
}

// NewService builds the calendar service. cache may be nil.
func NewService(repo domain.ReservationRepository, prices WindowPricer, cache domain.CalendarCache, inventory int, logger *zerolog.Logger) *Service {
	if inventory <= 0 {
		inventory = models.DefaultInventory
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{repo: repo, prices: prices, cache: cache, inventory: inventory, logger: logger}
}

// Calendar returns availability, price and bookability for [from, to].
// Datastore failures surface as ErrCalendarUnavailable.
func (s *Service) Calendar(ctx context.Context, from, to time.Time) ([]models.CalendarDay, error) {
	if to.Before(from) {
		return nil, apperr.Validation("to must not be before from")
	}
	if to.Sub(from) > MaxRangeDays*24*time.Hour {
		return nil, apperr.Validation(fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}

	key := cacheKey(from, to)
	if s.cache != nil {
		days, err := s.cache.GetCalendar(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("calendar cache read failed")
		} else if days != nil {
			return days, nil
		}
	}

	gen := s.generation.Load()
	days, err := s.load(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.generation.Load() == gen {
		if err := s.cache.SetCalendar(ctx, key, days); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("calendar cache write failed")
		}
	}
	return days, nil
}

// CheckBookable reads fresh data and requires every night of the stay to be
// sellable with at least units free.
func (s *Service) CheckBookable(ctx context.Context, checkIn time.Time, nights, units int) error {
	if nights <= 0 {
		return apperr.Validation("num_nights must be at least 1")
	}
	last := checkIn.AddDate(0, 0, nights-1)
	days, err := s.load(ctx, checkIn, last)
	if err != nil {
		return err
	}
	for _, day := range days {
		if !day.Bookable || day.Available < units {
			return apperr.ErrNotAvailable.WithMessage(fmt.Sprintf("%s has %d unit(s) left", day.Date, day.Available))
		}
	}
	return nil
}

// Invalidate drops cached calendars after a reservation changes.
func (s *Service) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("calendar cache invalidate failed")
	}
}

func (s *Service) load(ctx context.Context, from, to time.Time) ([]models.CalendarDay, error) {
	reservations, err := s.repo.ListReservationsOverlapping(ctx, from, to)
	if err != nil {
		return nil, apperr.ErrCalendarUnavailable.WithError(err)
	}

	windowStart, windowEnd := s.prices.Window()
	days := BuildCalendar(from, to, reservations, s.inventory)
	for i := range days {
		date, _ := models.ParseDate(days[i].Date)
		if price, ok := s.prices.PriceFor(date); ok {
			p := price
			days[i].Price = &p
		}
		inWindow := !date.Before(windowStart) && !date.After(windowEnd)
		days[i].Bookable = inWindow && days[i].Available > 0
	}
	return days, nil
}

func cacheKey(from, to time.Time) string {
	return models.FormatDate(from) + ":" + models.FormatDate(to)
}
