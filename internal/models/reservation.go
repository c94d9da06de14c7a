package models

import (
	"strings"
	"time"
)

// Guests is the head count assigned to one unit on one night.
type Guests struct {
	Male         int `json:"male"`
	Female       int `json:"female"`
	ChildWithBed int `json:"child_with_bed"`
	ChildNoBed   int `json:"child_no_bed"`
}

func (g Guests) Total() int {
	return g.Male + g.Female + g.ChildWithBed + g.ChildNoBed
}

// GuestCounts maps date (YYYY-MM-DD) -> unit number -> guests.
type GuestCounts map[string]map[int]Guests

// For returns the guests of a unit on a date, zero value when unset.
func (g GuestCounts) For(date string, unit int) Guests {
	if g == nil {
		return Guests{}
	}
	return g[date][unit]
}

// MealSelection is one meal plan chosen for one unit on one night.
// Menus are sub-choices inside the plan and carry no price.
type MealSelection struct {
	Count     int            `json:"count"`
	UnitPrice float64        `json:"unit_price"`
	Menus     map[string]int `json:"menus,omitempty"`
}

// MealSelections maps date -> unit -> plan id -> selection.
type MealSelections map[string]map[int]map[string]MealSelection

// Set stores a selection. A non-positive count removes the plan entry and
// prunes empty unit and date maps.
func (m MealSelections) Set(date string, unit int, planID string, sel MealSelection) {
	if sel.Count <= 0 {
		m.remove(date, unit, planID)
		return
	}
	units, ok := m[date]
	if !ok {
		units = make(map[int]map[string]MealSelection)
		m[date] = units
	}
	plans, ok := units[unit]
	if !ok {
		plans = make(map[string]MealSelection)
		units[unit] = plans
	}
	plans[planID] = sel
}

// Get returns the selection for a plan, if present.
func (m MealSelections) Get(date string, unit int, planID string) (MealSelection, bool) {
	sel, ok := m[date][unit][planID]
	return sel, ok
}

// CountFor sums counts across plans for one unit on one date.
func (m MealSelections) CountFor(date string, unit int) int {
	total := 0
	for _, sel := range m[date][unit] {
		total += sel.Count
	}
	return total
}

func (m MealSelections) remove(date string, unit int, planID string) {
	units, ok := m[date]
	if !ok {
		return
	}
	plans, ok := units[unit]
	if !ok {
		return
	}
	delete(plans, planID)
	if len(plans) == 0 {
		delete(units, unit)
	}
	if len(units) == 0 {
		delete(m, date)
	}
}

type Reservation struct {
	ID                int64          `json:"id"`
	ReservationNumber string         `json:"reservation_number"`
	GuestName         string         `json:"guest_name"`
	Email             string         `json:"email"`
	Phone             string         `json:"phone"`
	Address           string         `json:"address,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	CheckInDate       time.Time      `json:"check_in_date"`
	NumNights         int            `json:"num_nights"`
	NumUnits          int            `json:"num_units"`
	Guests            GuestCounts    `json:"guest_counts"`
	RoomRate          float64        `json:"room_rate"`
	MealPlans         MealSelections `json:"meal_plans"`
	TotalMealPrice    float64        `json:"total_meal_price"`
	TotalAmount       float64        `json:"total_amount"`
	DiscountAmount    float64        `json:"discount_amount"`
	PaymentAmount     float64        `json:"payment_amount"`
	CouponCode        string         `json:"coupon_code,omitempty"`
	Status            string         `json:"reservation_status"`
	PaymentStatus     string         `json:"payment_status"`
	PaymentMethod     string         `json:"payment_method"`
	PaymentIntentID   string         `json:"payment_intent_id,omitempty"`
	CancellationFee   float64        `json:"cancellation_fee"`
	CancelledAt       *time.Time     `json:"cancelled_at,omitempty"`
	SyncStatus        string         `json:"sync_status"`
	PendingCount      int            `json:"pending_count"`
	LastPendingCheck  *time.Time     `json:"last_pending_checked_at,omitempty"`
	SyncedAt          *time.Time     `json:"synced_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CheckOutDate is the morning after the last night.
func (r *Reservation) CheckOutDate() time.Time {
	return r.CheckInDate.AddDate(0, 0, r.NumNights)
}

// NightDates lists every occupied night: check-in + i for i in [0, nights).
func (r *Reservation) NightDates() []time.Time {
	dates := make([]time.Time, 0, r.NumNights)
	for i := 0; i < r.NumNights; i++ {
		dates = append(dates, r.CheckInDate.AddDate(0, 0, i))
	}
	return dates
}

// HasDiscount reports whether a coupon reduced the amount actually charged.
func (r *Reservation) HasDiscount() bool {
	return r.PaymentAmount > 0 && r.PaymentAmount < r.TotalAmount
}

// IsOwnChannel reports whether the reservation was created by this system.
func (r *Reservation) IsOwnChannel() bool {
	return strings.HasPrefix(r.ReservationNumber, ReservationNumberPrefix)
}
