// Package pricing holds the pure money rules: nightly rates, stay totals,
// meal selections and cancellation fees.
package pricing

import (
	"time"

	"villa/internal/config"
)

// Pricer answers the nightly unit price for a civil date.
type Pricer interface {
	PriceFor(date time.Time) (float64, bool)
}

type season struct {
	start, end int // month*100 + day
}

func (s season) contains(md int) bool {
	if s.start <= s.end {
		return md >= s.start && md <= s.end
	}
	return md >= s.start || md <= s.end
}

// PriceTable is the seasonal nightly rate schedule.
type PriceTable struct {
	baseRate    float64
	multiplier  float64
	seasons     []season
	windowStart time.Time
	windowEnd   time.Time
}

func NewPriceTable(pricing config.PricingConfig, booking config.BookingConfig) *PriceTable {
	start, end := booking.Window()
	t := &PriceTable{
		baseRate:    pricing.BaseRate,
		multiplier:  pricing.HighSeasonMultiplier,
		windowStart: start,
		windowEnd:   end,
	}
	if t.multiplier <= 0 {
		t.multiplier = 1
	}
	for _, w := range pricing.HighSeasons {
		s, errS := time.Parse("01-02", w.Start)
		e, errE := time.Parse("01-02", w.End)
		if errS != nil || errE != nil {
			continue
		}
		t.seasons = append(t.seasons, season{
			start: int(s.Month())*100 + s.Day(),
			end:   int(e.Month())*100 + e.Day(),
		})
	}
	return t
}

// PriceFor returns the per-unit price of a night, or false when the date is
// outside the sellable range.
func (t *PriceTable) PriceFor(date time.Time) (float64, bool) {
	if date.Before(t.windowStart) || date.After(t.windowEnd) {
		return 0, false
	}
	if t.IsHighSeason(date) {
		return t.baseRate * t.multiplier, true
	}
	return t.baseRate, true
}

func (t *PriceTable) IsHighSeason(date time.Time) bool {
	md := int(date.Month())*100 + date.Day()
	for _, s := range t.seasons {
		if s.contains(md) {
			return true
		}
	}
	return false
}

// Window returns the first and last sellable dates.
func (t *PriceTable) Window() (time.Time, time.Time) {
	return t.windowStart, t.windowEnd
}
