package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMealSelections_SetRemovesZeroCount(t *testing.T) {
	sel := MealSelections{}
	sel.Set("2026-05-01", 1, "bbq", MealSelection{Count: 2, UnitPrice: 4500})
	sel.Set("2026-05-01", 1, "breakfast", MealSelection{Count: 1, UnitPrice: 1500})
	assert.Equal(t, 3, sel.CountFor("2026-05-01", 1))

	sel.Set("2026-05-01", 1, "bbq", MealSelection{Count: 0, UnitPrice: 4500})
	_, ok := sel.Get("2026-05-01", 1, "bbq")
	assert.False(t, ok)
	assert.Equal(t, 1, sel.CountFor("2026-05-01", 1))

	sel.Set("2026-05-01", 1, "breakfast", MealSelection{})
	assert.Empty(t, sel)
}

func TestReservation_Helpers(t *testing.T) {
	checkIn := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	r := &Reservation{
		ReservationNumber: "RES-1700000000000",
		CheckInDate:       checkIn,
		NumNights:         3,
		TotalAmount:       100000,
		PaymentAmount:     95000,
	}

	nights := r.NightDates()
	require.Len(t, nights, 3)
	assert.Equal(t, "2026-05-30", FormatDate(nights[0]))
	assert.Equal(t, "2026-06-01", FormatDate(nights[2]))
	assert.Equal(t, "2026-06-02", FormatDate(r.CheckOutDate()))
	assert.True(t, r.HasDiscount())
	assert.True(t, r.IsOwnChannel())

	r.PaymentAmount = r.TotalAmount
	assert.False(t, r.HasDiscount())

	r.ReservationNumber = "OTA-77"
	assert.False(t, r.IsOwnChannel())
}

func TestToday_UsesZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 16:00 UTC is already the next day in Tokyo.
	now := time.Date(2026, 5, 1, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-05-02", FormatDate(Today(now, tokyo)))
	assert.Equal(t, "2026-05-01", FormatDate(Today(now, time.UTC)))

	midnight := LocalMidnight(Today(now, tokyo), tokyo)
	assert.Equal(t, time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC), midnight.UTC())
}

func TestStatuses(t *testing.T) {
	for _, s := range []string{StatusPending, StatusConfirmed, StatusPaid, StatusProcessing} {
		assert.True(t, IsActiveStatus(s), s)
	}
	assert.False(t, IsActiveStatus(StatusCancelled))
	assert.False(t, IsActiveStatus(StatusCustomerCancelled))
	assert.True(t, IsCancelledStatus(StatusCustomerCancelled))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-12-31")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, d.Location())

	_, err = ParseDate("31/12/2026")
	assert.Error(t, err)
}
