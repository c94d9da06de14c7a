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

type reminderTier struct {
	days int
	kind string
}

var reminderTiers = []reminderTier{
	{days: 33, kind: models.ReminderType33Days},
	{days: 10, kind: models.ReminderType10Days},
	{days: 1, kind: models.ReminderType1Day},
}

var reminderStatuses = []string{models.StatusConfirmed, models.StatusPending, models.StatusPaid}

// ReminderJob mails guests 33, 10 and 1 day before check-in, once per tier.
type ReminderJob struct {
	repo     domain.Repository
	notifier *service.Notifier
	composer *email.Composer
	loc      *time.Location
	logger   zerolog.Logger
}

func NewReminderJob(repo domain.Repository, notifier *service.Notifier, composer *email.Composer, loc *time.Location, logger *zerolog.Logger) *ReminderJob {
	return &ReminderJob{repo: repo, notifier: notifier, composer: composer, loc: loc,
		logger: logger.With().Str("job", "reminders").Logger()}
}

func (j *ReminderJob) Name() string { return "reminders" }

func (j *ReminderJob) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := newReport(j.Name())
	today := models.Today(now, j.loc)

	dates := make([]time.Time, 0, len(reminderTiers))
	tierByDate := make(map[string]reminderTier, len(reminderTiers))
	for _, tier := range reminderTiers {
		d := today.AddDate(0, 0, tier.days)
		dates = append(dates, d)
		tierByDate[models.FormatDate(d)] = tier
	}

	reservations, err := j.repo.ListReservationsByCheckIn(ctx, dates, reminderStatuses)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	for i := range reservations {
		r := &reservations[i]
		if !r.IsOwnChannel() {
			continue
		}
		tier := tierByDate[models.FormatDate(r.CheckInDate)]
		report.add(j.remind(ctx, r, tier, now))
	}

	j.logger.Info().Int("processed", report.Processed).Int("notified", report.Notified).Int("errors", report.Errors).Msg("Reminder job finished")
	return report, nil
}

func (j *ReminderJob) remind(ctx context.Context, r *models.Reservation, tier reminderTier, now time.Time) ItemResult {
	item := ItemResult{ReservationID: r.ID, Number: r.ReservationNumber, Detail: tier.kind}

	done, err := j.repo.HasReminderLog(ctx, r.ID, tier.kind)
	if err != nil {
		item.Outcome, item.Error = OutcomeError, err.Error()
		return item
	}
	if done {
		item.Outcome = OutcomeSkipped
		return item
	}

	msg, err := j.composer.Reminder(r, tier.days)
	if err == nil {
		err = j.notifier.Send(ctx, "reminder_"+tier.kind, msg)
	}
	if err != nil {
		j.logger.Warn().Err(err).Str("reservation", r.ReservationNumber).Str("tier", tier.kind).Msg("Reminder not sent")
		item.Outcome, item.Error = OutcomeEmailError, err.Error()
		return item
	}

	if err := j.repo.CreateReminderLog(ctx, &models.ReminderLog{ReservationID: r.ID, ReminderType: tier.kind, SentAt: now}); err != nil {
		item.Outcome, item.Error = OutcomeError, errString(err)
		return item
	}
	item.Outcome = OutcomeNotified
	return item
}
