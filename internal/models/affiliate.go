package models

import "time"

type Affiliate struct {
	ID            int64     `json:"id"`
	AffiliateCode string    `json:"affiliate_code"`
	CouponCode    string    `json:"coupon_code"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	BankName      string    `json:"bank_name"`
	BankBranch    string    `json:"bank_branch"`
	AccountType   string    `json:"account_type"`
	AccountNumber string    `json:"account_number"`
	AccountHolder string    `json:"account_holder"`
	CreatedAt     time.Time `json:"created_at"`
}

// AffiliatePayout records a settled reward amount for a period (YYYY-MM).
type AffiliatePayout struct {
	ID          int64     `json:"id"`
	AffiliateID int64     `json:"affiliate_id"`
	Amount      float64   `json:"amount"`
	Period      string    `json:"period"`
	PaidAt      time.Time `json:"paid_at"`
}

// AffiliateStats is derived from reservations carrying the affiliate coupon.
type AffiliateStats struct {
	Affiliate      Affiliate `json:"affiliate"`
	LifetimeCount  int       `json:"lifetime_count"`
	YearCount      int       `json:"year_count"`
	MonthCount     int       `json:"month_count"`
	LifetimeReward float64   `json:"lifetime_reward"`
	YearReward     float64   `json:"year_reward"`
	MonthReward    float64   `json:"month_reward"`
	PaidOut        float64   `json:"paid_out"`
	Outstanding    float64   `json:"outstanding"`
}
