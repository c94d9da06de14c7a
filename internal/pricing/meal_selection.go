package pricing

import (
	"fmt"
	"sort"

	"villa/internal/apperr"
	"villa/internal/config"
	"villa/internal/models"
)

type MealPlan struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Menus []string `json:"menus,omitempty"`
}

// MealCatalog is the set of purchasable meal plans.
type MealCatalog struct {
	plans map[string]MealPlan
	order []string
}

func NewMealCatalog(plans []config.MealPlanConfig) *MealCatalog {
	c := &MealCatalog{plans: make(map[string]MealPlan, len(plans))}
	for _, p := range plans {
		c.plans[p.ID] = MealPlan{ID: p.ID, Name: p.Name, Price: p.Price, Menus: p.Menus}
		c.order = append(c.order, p.ID)
	}
	return c
}

func (c *MealCatalog) Plan(id string) (MealPlan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Plans lists plans in configuration order.
func (c *MealCatalog) Plans() []MealPlan {
	out := make([]MealPlan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// Reprice copies selections with catalog prices, dropping zero counts.
// Client supplied prices are never trusted.
func (c *MealCatalog) Reprice(in models.MealSelections) (models.MealSelections, error) {
	out := models.MealSelections{}
	for date, units := range in {
		for unit, plans := range units {
			for planID, sel := range plans {
				plan, ok := c.plans[planID]
				if !ok {
					return nil, apperr.Validation(fmt.Sprintf("unknown meal plan %q", planID))
				}
				if sel.Count < 0 {
					return nil, apperr.Validation(fmt.Sprintf("negative meal count for %q", planID))
				}
				if err := checkMenus(plan, sel); err != nil {
					return nil, err
				}
				out.Set(date, unit, planID, models.MealSelection{
					Count:     sel.Count,
					UnitPrice: plan.Price,
					Menus:     sel.Menus,
				})
			}
		}
	}
	return out, nil
}

func checkMenus(plan MealPlan, sel models.MealSelection) error {
	if len(sel.Menus) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(plan.Menus))
	for _, m := range plan.Menus {
		allowed[m] = true
	}
	for menu, n := range sel.Menus {
		if !allowed[menu] {
			return apperr.Validation(fmt.Sprintf("menu %q is not offered with plan %q", menu, plan.ID))
		}
		if n < 0 {
			return apperr.Validation(fmt.Sprintf("negative count for menu %q", menu))
		}
	}
	return nil
}

// Increment adds one serving of a plan for a unit and night. It refuses to go
// past the number of guests assigned to that unit on that night.
func (c *MealCatalog) Increment(sel models.MealSelections, guests models.GuestCounts, date string, unit int, planID string) error {
	plan, ok := c.plans[planID]
	if !ok {
		return apperr.Validation(fmt.Sprintf("unknown meal plan %q", planID))
	}
	limit := guests.For(date, unit).Total()
	if sel.CountFor(date, unit)+1 > limit {
		return apperr.ErrGuestLimit
	}
	cur, _ := sel.Get(date, unit, planID)
	cur.Count++
	cur.UnitPrice = plan.Price
	sel.Set(date, unit, planID, cur)
	return nil
}

// Decrement removes one serving; reaching zero drops the entry.
func (c *MealCatalog) Decrement(sel models.MealSelections, date string, unit int, planID string) {
	cur, ok := sel.Get(date, unit, planID)
	if !ok {
		return
	}
	cur.Count--
	sel.Set(date, unit, planID, cur)
}

// CheckGuestLimits verifies every (date, unit) meal count fits its guests.
func CheckGuestLimits(sel models.MealSelections, guests models.GuestCounts) error {
	dates := make([]string, 0, len(sel))
	for d := range sel {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, date := range dates {
		for unit := range sel[date] {
			if sel.CountFor(date, unit) > guests.For(date, unit).Total() {
				return apperr.ErrGuestLimit.WithMessage(
					fmt.Sprintf("meal count for unit %d on %s exceeds its guests", unit, date))
			}
		}
	}
	return nil
}
