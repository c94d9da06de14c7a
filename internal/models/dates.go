package models

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire format for civil dates.
const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD into a civil date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// CivilDate drops the clock and zone, keeping the calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar day of now as seen in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	return CivilDate(now.In(loc))
}

// LocalMidnight places a civil date at 00:00 in loc.
func LocalMidnight(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
