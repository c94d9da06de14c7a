package pricing

import (
	"math"
	"time"

	"villa/internal/models"
)

const (
	fullFeeMaxDays = 7
	halfFeeMaxDays = 30
	creditFeeRate  = 0.036
)

// CancellationFee applies the tiered policy:
//
//	days <= 7   100% (of the charged amount when a discount applied)
//	8..30       50% of total
//	> 30        0, or 3.6% of total for credit payments
//
// The result is rounded to 2 decimals.
func CancellationFee(total, paid float64, method string, daysUntilCheckIn int) float64 {
	var fee float64
	switch {
	case daysUntilCheckIn <= fullFeeMaxDays:
		fee = total
		if paid > 0 && paid < total {
			fee = paid
		}
	case daysUntilCheckIn <= halfFeeMaxDays:
		fee = total * 0.5
	case method == models.PaymentMethodCredit:
		fee = total * creditFeeRate
	}
	return roundCents(fee)
}

// DaysUntilCheckIn is ceil((check-in at local midnight - now) / 24h).
func DaysUntilCheckIn(checkIn, now time.Time, loc *time.Location) int {
	diff := models.LocalMidnight(checkIn, loc).Sub(now)
	return int(math.Ceil(diff.Hours() / 24))
}

// FeeForReservation is the fee the guest would owe if cancelling at now.
func FeeForReservation(r *models.Reservation, now time.Time, loc *time.Location) float64 {
	days := DaysUntilCheckIn(r.CheckInDate, now, loc)
	return CancellationFee(r.TotalAmount, r.PaymentAmount, r.PaymentMethod, days)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
