package jobs

import (
	"context"
	"fmt"
	"time"

	"villa/internal/domain"
	"villa/internal/email"
	"villa/internal/models"
	"villa/internal/service"

	"github.com/rs/zerolog"
)

// PendingSyncJob tracks reservations the PMS never acknowledged. It only
// counts and alerts; delivery retries belong to the sync worker.
type PendingSyncJob struct {
	repo     domain.Repository
	notifier *service.Notifier
	composer *email.Composer
	logger   zerolog.Logger
}

func NewPendingSyncJob(repo domain.Repository, notifier *service.Notifier, composer *email.Composer, logger *zerolog.Logger) *PendingSyncJob {
	return &PendingSyncJob{repo: repo, notifier: notifier, composer: composer,
		logger: logger.With().Str("job", "pending-sync").Logger()}
}

func (j *PendingSyncJob) Name() string { return "pending-sync" }

func (j *PendingSyncJob) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := newReport(j.Name())

	reservations, err := j.repo.ListReservationsBySyncStatus(ctx, models.SyncStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	for i := range reservations {
		report.add(j.check(ctx, &reservations[i], now))
	}

	if report.Processed > 0 {
		j.logger.Warn().Int("pending", report.Processed).Int("alerted", report.Notified).Msg("Reservations still waiting for PMS sync")
	}
	return report, nil
}

func (j *PendingSyncJob) check(ctx context.Context, r *models.Reservation, now time.Time) ItemResult {
	item := ItemResult{ReservationID: r.ID, Number: r.ReservationNumber}

	count, err := j.repo.IncrementPendingCount(ctx, r.ID, now)
	if err != nil {
		item.Outcome, item.Error = OutcomeError, err.Error()
		return item
	}
	r.PendingCount = count
	item.Detail = fmt.Sprintf("pending_count=%d", count)
	item.Outcome = OutcomeUpdated

	if count < models.PendingAlertThreshold {
		return item
	}

	msg, err := j.composer.PendingAlert(r)
	if err != nil {
		item.Outcome, item.Error = OutcomeEmailError, err.Error()
		return item
	}
	sent, err := j.notifier.SendOnce(ctx, r.ID, models.EmailTypePendingAlert, models.RecipientAdmin, msg)
	if err != nil {
		item.Outcome, item.Error = OutcomeEmailError, err.Error()
		return item
	}
	if sent {
		item.Outcome = OutcomeNotified
	}
	return item
}
