package jobs

import (
	"context"
	"fmt"
	"time"

	"villa/internal/domain"
	"villa/internal/models"

	"github.com/rs/zerolog"
)

// ProcessingJob moves pending reservations whose check-in is near into
// processing so staff can prepare the stay.
type ProcessingJob struct {
	repo   domain.ReservationRepository
	days   int
	loc    *time.Location
	logger zerolog.Logger
}

func NewProcessingJob(repo domain.ReservationRepository, days int, loc *time.Location, logger *zerolog.Logger) *ProcessingJob {
	if days <= 0 {
		days = 3
	}
	return &ProcessingJob{repo: repo, days: days, loc: loc,
		logger: logger.With().Str("job", "processing").Logger()}
}

func (j *ProcessingJob) Name() string { return "processing" }

func (j *ProcessingJob) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := newReport(j.Name())
	today := models.Today(now, j.loc)

	reservations, err := j.repo.ListReservationsCheckInBetween(ctx, today, today.AddDate(0, 0, j.days), []string{models.StatusPending})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	for i := range reservations {
		r := &reservations[i]
		item := ItemResult{ReservationID: r.ID, Number: r.ReservationNumber, Outcome: OutcomeUpdated}
		if err := j.repo.UpdateReservationStatus(ctx, r.ID, []string{models.StatusPending}, models.StatusProcessing); err != nil {
			item.Outcome, item.Error = OutcomeError, err.Error()
		}
		report.add(item)
	}

	j.logger.Info().Int("updated", report.Processed-report.Errors).Msg("Processing job finished")
	return report, nil
}
