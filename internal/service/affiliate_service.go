package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"villa/internal/apperr"
	"villa/internal/domain"
	"villa/internal/email"
	"villa/internal/models"

	"github.com/rs/zerolog"
)

const emailTypeAffiliateWelcome = "affiliate_welcome"

// rewardStatuses are the reservation statuses that earn an affiliate reward.
var rewardStatuses = []string{models.StatusConfirmed, models.StatusPaid, models.StatusProcessing}

type AffiliateService struct {
	repo     domain.AffiliateRepository
	bookings domain.ReservationRepository
	notifier *Notifier
	composer *email.Composer
	reward   float64
	loc      *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewAffiliateService(repo domain.AffiliateRepository, bookings domain.ReservationRepository, notifier *Notifier, composer *email.Composer, reward float64, loc *time.Location, logger *zerolog.Logger) *AffiliateService {
	if loc == nil {
		loc = time.UTC
	}
	return &AffiliateService{
		repo:     repo,
		bookings: bookings,
		notifier: notifier,
		composer: composer,
		reward:   reward,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

type RegisterAffiliateInput struct {
	AffiliateCode string `json:"affiliate_code"`
	CouponCode    string `json:"coupon_code"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	BankName      string `json:"bank_name"`
	BankBranch    string `json:"bank_branch"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

type RegisterResult struct {
	Affiliate *models.Affiliate `json:"affiliate"`
	Steps     []StepResult      `json:"steps,omitempty"`
}

// Register stores a new affiliate and sends the onboarding email.
func (s *AffiliateService) Register(ctx context.Context, in RegisterAffiliateInput) (*RegisterResult, error) {
	a := &models.Affiliate{
		AffiliateCode: strings.TrimSpace(in.AffiliateCode),
		CouponCode:    strings.TrimSpace(in.CouponCode),
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		BankName:      strings.TrimSpace(in.BankName),
		BankBranch:    strings.TrimSpace(in.BankBranch),
		AccountType:   strings.TrimSpace(in.AccountType),
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		AccountHolder: strings.TrimSpace(in.AccountHolder),
	}
	switch {
	case a.AffiliateCode == "":
		return nil, apperr.Validation("affiliate_code is required")
	case a.CouponCode == "":
		return nil, apperr.Validation("coupon_code is required")
	case a.Name == "":
		return nil, apperr.Validation("name is required")
	}
	addr, err := bareAddress(a.Email)
	if err != nil {
		return nil, err
	}
	a.Email = addr

	if err := s.repo.CreateAffiliate(ctx, a); err != nil {
		return nil, err
	}

	msg, err := s.composer.AffiliateWelcome(a)
	if err == nil {
		err = s.notifier.Send(ctx, emailTypeAffiliateWelcome, msg)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("affiliate", a.AffiliateCode).Msg("Failed to send affiliate welcome email")
	}
	return &RegisterResult{Affiliate: a, Steps: []StepResult{stepResult(StepGuestEmail, err)}}, nil
}

func (s *AffiliateService) List(ctx context.Context) ([]models.Affiliate, error) {
	return s.repo.ListAffiliates(ctx)
}

// StatsForGuest is the self-service view, guarded by the affiliate's email.
func (s *AffiliateService) StatsForGuest(ctx context.Context, code, affiliateEmail string) (*models.AffiliateStats, error) {
	a, err := s.repo.GetAffiliateByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(a.Email, strings.TrimSpace(affiliateEmail)) {
		return nil, apperr.ErrAffiliateNotFound
	}
	return s.stats(ctx, a, models.Today(s.now(), s.loc))
}

func (s *AffiliateService) Stats(ctx context.Context, code string) (*models.AffiliateStats, error) {
	a, err := s.repo.GetAffiliateByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	return s.stats(ctx, a, models.Today(s.now(), s.loc))
}

// stats counts rewarded reservations by check-in date: lifetime, the year
// of ref and the month of ref.
func (s *AffiliateService) stats(ctx context.Context, a *models.Affiliate, ref time.Time) (*models.AffiliateStats, error) {
	reservations, err := s.bookings.ListReservationsByCoupon(ctx, a.CouponCode)
	if err != nil {
		return nil, err
	}
	payouts, err := s.repo.ListPayouts(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	st := &models.AffiliateStats{Affiliate: *a}
	for _, r := range reservations {
		if !rewarded(r.Status) {
			continue
		}
		st.LifetimeCount++
		if r.CheckInDate.Year() == ref.Year() {
			st.YearCount++
			if r.CheckInDate.Month() == ref.Month() {
				st.MonthCount++
			}
		}
	}
	st.LifetimeReward = float64(st.LifetimeCount) * s.reward
	st.YearReward = float64(st.YearCount) * s.reward
	st.MonthReward = float64(st.MonthCount) * s.reward
	for _, p := range payouts {
		st.PaidOut += p.Amount
	}
	st.Outstanding = st.LifetimeReward - st.PaidOut
	return st, nil
}

// MonthlyStats returns one row per affiliate with year and month counts for
// the given period, used by the payout export.
func (s *AffiliateService) MonthlyStats(ctx context.Context, year int, month time.Month) ([]models.AffiliateStats, error) {
	if month < time.January || month > time.December {
		return nil, apperr.Validation("month must be 1-12")
	}
	affiliates, err := s.repo.ListAffiliates(ctx)
	if err != nil {
		return nil, err
	}
	ref := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.AffiliateStats, 0, len(affiliates))
	for i := range affiliates {
		st, err := s.stats(ctx, &affiliates[i], ref)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

type PayoutInput struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period"`
}

func (s *AffiliateService) RecordPayout(ctx context.Context, code string, in PayoutInput) (*models.AffiliatePayout, error) {
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if _, err := time.Parse("2006-01", in.Period); err != nil {
		return nil, apperr.Validation("period must be YYYY-MM")
	}
	a, err := s.repo.GetAffiliateByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	p := &models.AffiliatePayout{AffiliateID: a.ID, Amount: in.Amount, Period: in.Period, PaidAt: s.now()}
	if err := s.repo.CreatePayout(ctx, p); err != nil {
		return nil, fmt.Errorf("record payout: %w", err)
	}
	return p, nil
}

func rewarded(status string) bool {
	for _, st := range rewardStatuses {
		if st == status {
			return true
		}
	}
	return false
}
