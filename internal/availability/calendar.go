// Package availability derives per-date unit availability from reservations.
package availability

import (
	"time"

	"villa/internal/models"
)

// BuildCalendar expands every active reservation into its nights and sums the
// units held on each date of [from, to]. Available is clamped at zero.
func BuildCalendar(from, to time.Time, reservations []models.Reservation, inventory int) []models.CalendarDay {
	booked := make(map[string]int)
	for i := range reservations {
		r := &reservations[i]
		if !models.IsActiveStatus(r.Status) {
			continue
		}
		for _, night := range r.NightDates() {
			booked[models.FormatDate(night)] += r.NumUnits
		}
	}

	var days []models.CalendarDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := models.FormatDate(d)
		total := booked[key]
		available := inventory - total
		if available < 0 {
			available = 0
		}
		days = append(days, models.CalendarDay{
			Date:      key,
			Total:     total,
			Available: available,
		})
	}
	return days
}

// Unavailable is the degraded calendar served when reservations cannot be read.
func Unavailable(from, to time.Time) []models.CalendarDay {
	var days []models.CalendarDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, models.CalendarDay{Date: models.FormatDate(d)})
	}
	return days
}
