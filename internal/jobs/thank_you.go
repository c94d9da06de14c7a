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

var thankYouStatuses = []string{models.StatusConfirmed, models.StatusPaid}

// ThankYouJob mails guests on their check-out day, once per reservation.
type ThankYouJob struct {
	repo     domain.Repository
	notifier *service.Notifier
	composer *email.Composer
	loc      *time.Location
	logger   zerolog.Logger
}

func NewThankYouJob(repo domain.Repository, notifier *service.Notifier, composer *email.Composer, loc *time.Location, logger *zerolog.Logger) *ThankYouJob {
	return &ThankYouJob{repo: repo, notifier: notifier, composer: composer, loc: loc,
		logger: logger.With().Str("job", "thank-you").Logger()}
}

func (j *ThankYouJob) Name() string { return "thank-you" }

func (j *ThankYouJob) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := newReport(j.Name())
	today := models.Today(now, j.loc)

	reservations, err := j.repo.ListReservationsByCheckOut(ctx, today, thankYouStatuses)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	for i := range reservations {
		r := &reservations[i]
		item := ItemResult{ReservationID: r.ID, Number: r.ReservationNumber}

		done, err := j.repo.HasReminderLog(ctx, r.ID, models.ReminderTypeThankYou)
		switch {
		case err != nil:
			item.Outcome, item.Error = OutcomeError, err.Error()
		case done:
			item.Outcome = OutcomeSkipped
		default:
			item = j.send(ctx, r, item, now)
		}
		report.add(item)
	}

	j.logger.Info().Int("processed", report.Processed).Int("notified", report.Notified).Msg("Thank-you job finished")
	return report, nil
}

func (j *ThankYouJob) send(ctx context.Context, r *models.Reservation, item ItemResult, now time.Time) ItemResult {
	msg, err := j.composer.ThankYou(r)
	if err == nil {
		err = j.notifier.Send(ctx, models.ReminderTypeThankYou, msg)
	}
	if err != nil {
		item.Outcome, item.Error = OutcomeEmailError, err.Error()
		return item
	}
	if err := j.repo.CreateReminderLog(ctx, &models.ReminderLog{ReservationID: r.ID, ReminderType: models.ReminderTypeThankYou, SentAt: now}); err != nil {
		item.Outcome, item.Error = OutcomeError, err.Error()
		return item
	}
	item.Outcome = OutcomeNotified
	return item
}
