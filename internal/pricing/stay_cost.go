package pricing

import (
	"fmt"
	"time"

	"villa/internal/apperr"
	"villa/internal/models"
)

// StayRequest is the input of ComputeStayCost. Guest counts are not part of
// it: the aggregator trusts the meal counts it is given.
type StayRequest struct {
	CheckIn        time.Time
	Nights         int
	Units          int
	Meals          models.MealSelections
	CouponDiscount float64
}

type NightlyCharge struct {
	Date     string  `json:"date"`
	Price    float64 `json:"price"`
	Units    int     `json:"units"`
	Subtotal float64 `json:"subtotal"`
}

type StayCost struct {
	Nights             []NightlyCharge `json:"nights"`
	RoomTotal          float64         `json:"room_total"`
	MealTotal          float64         `json:"meal_total"`
	TotalAmount        float64         `json:"total_amount"`
	Discount           float64         `json:"discount"`
	TotalAfterDiscount float64         `json:"total_after_discount"`
}

// ComputeStayCost sums the room and meal charges of a stay:
// room = Σ price(night) × units, meal = Σ unit price × count,
// and the coupon discount is floored so the total never goes negative.
func ComputeStayCost(p Pricer, req StayRequest) (StayCost, error) {
	var cost StayCost
	if req.Nights <= 0 {
		return cost, apperr.Validation("num_nights must be at least 1")
	}
	if req.Units <= 0 {
		return cost, apperr.Validation("num_units must be at least 1")
	}

	for i := 0; i < req.Nights; i++ {
		date := req.CheckIn.AddDate(0, 0, i)
		price, ok := p.PriceFor(date)
		if !ok {
			return StayCost{}, apperr.ErrDateNotSellable.WithMessage(
				fmt.Sprintf("%s is outside the sellable range", models.FormatDate(date)))
		}
		subtotal := price * float64(req.Units)
		cost.Nights = append(cost.Nights, NightlyCharge{
			Date:     models.FormatDate(date),
			Price:    price,
			Units:    req.Units,
			Subtotal: subtotal,
		})
		cost.RoomTotal += subtotal
	}

	cost.MealTotal = MealTotal(req.Meals)
	cost.TotalAmount = cost.RoomTotal + cost.MealTotal

	after := cost.TotalAmount - req.CouponDiscount
	if after < 0 {
		after = 0
	}
	cost.TotalAfterDiscount = after
	cost.Discount = cost.TotalAmount - after
	return cost, nil
}

// MealTotal sums unit price × count over every (date, unit, plan).
func MealTotal(meals models.MealSelections) float64 {
	total := 0.0
	for _, units := range meals {
		for _, plans := range units {
			for _, sel := range plans {
				total += sel.UnitPrice * float64(sel.Count)
			}
		}
	}
	return total
}
