package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"villa/internal/database"
	"villa/internal/domain"
	"villa/internal/email"
	"villa/internal/models"
	"villa/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokyo = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return loc
}()

// Early morning in Tokyo is still the previous day in UTC.
var jobNow = time.Date(2026, 7, 1, 6, 0, 0, 0, tokyo)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []domain.EmailMessage
}

func (m *fakeMailer) Send(_ context.Context, msg domain.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	db       *database.DB
	mailer   *fakeMailer
	notifier *service.Notifier
	composer *email.Composer
	logger   zerolog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "jobs.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	composer, err := email.NewComposer("admin@villa.test", "ops@villa.test", nil)
	require.NoError(t, err)

	mailer := &fakeMailer{}
	return &fixture{
		db:       db,
		mailer:   mailer,
		notifier: service.NewNotifier(mailer, db, &logger),
		composer: composer,
		logger:   logger,
	}
}

func (f *fixture) reservation(t *testing.T, number, checkIn string, nights int, status string) *models.Reservation {
	t.Helper()
	date, err := models.ParseDate(checkIn)
	require.NoError(t, err)
	r := &models.Reservation{
		ReservationNumber: number,
		GuestName:         "Taro Suzuki",
		Email:             "taro@example.com",
		CheckInDate:       date,
		NumNights:         nights,
		NumUnits:          1,
		RoomRate:          20000,
		TotalAmount:       20000 * float64(nights),
		PaymentAmount:     20000 * float64(nights),
		Status:            status,
		PaymentStatus:     models.PaymentStatusPending,
		PaymentMethod:     models.PaymentMethodOnsite,
	}
	require.NoError(t, f.db.CreateReservation(context.Background(), r))
	return r
}

func outcomes(report *Report) map[string]Outcome {
	out := make(map[string]Outcome, len(report.Results))
	for _, item := range report.Results {
		out[item.Number] = item.Outcome
	}
	return out
}

func TestReminderJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.reservation(t, "RES-33", "2026-08-03", 2, models.StatusConfirmed)
	f.reservation(t, "RES-10", "2026-07-11", 1, models.StatusPending)
	f.reservation(t, "RES-1", "2026-07-02", 1, models.StatusConfirmed)
	f.reservation(t, "OTA-10", "2026-07-11", 1, models.StatusConfirmed)
	f.reservation(t, "RES-PAID", "2026-07-02", 1, models.StatusPaid)
	f.reservation(t, "RES-CXL", "2026-07-11", 1, models.StatusCustomerCancelled)
	f.reservation(t, "RES-11", "2026-07-12", 1, models.StatusConfirmed)

	job := NewReminderJob(f.db, f.notifier, f.composer, tokyo, &f.logger)
	report, err := job.Run(ctx, jobNow)
	require.NoError(t, err)

	assert.Equal(t, "reminders", report.Job)
	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 4, report.Notified)
	assert.Equal(t, map[string]Outcome{
		"RES-33":   OutcomeNotified,
		"RES-10":   OutcomeNotified,
		"RES-1":    OutcomeNotified,
		"RES-PAID": OutcomeNotified,
	}, outcomes(report))

	subjects := make([]string, 0, 4)
	for _, msg := range f.mailer.sent {
		subjects = append(subjects, msg.Subject)
	}
	assert.Contains(t, subjects, "33 days until your stay RES-33")
	assert.Contains(t, subjects, "10 days until your stay RES-10")
	assert.Contains(t, subjects, "Your stay starts tomorrow RES-1")
	assert.Contains(t, subjects, "Your stay starts tomorrow RES-PAID")

	t.Run("SecondRunSkips", func(t *testing.T) {
		again, err := job.Run(ctx, jobNow)
		require.NoError(t, err)
		assert.Equal(t, 4, again.Processed)
		assert.Zero(t, again.Notified)
		for _, item := range again.Results {
			assert.Equal(t, OutcomeSkipped, item.Outcome)
		}
		assert.Equal(t, 4, f.mailer.count())
	})
}

func TestReminderJobEmailFailureLeavesNoLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.reservation(t, "RES-10", "2026-07-11", 1, models.StatusConfirmed)

	f.mailer.err = errors.New("smtp down")
	job := NewReminderJob(f.db, f.notifier, f.composer, tokyo, &f.logger)
	report, err := job.Run(ctx, jobNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, OutcomeEmailError, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Error, "smtp down")

	logged, err := f.db.HasReminderLog(ctx, r.ID, models.ReminderType10Days)
	require.NoError(t, err)
	assert.False(t, logged)

	f.mailer.err = nil
	report, err = job.Run(ctx, jobNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)
}

func TestThankYouJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Check-out on 2026-07-01.
	f.reservation(t, "RES-A", "2026-06-29", 2, models.StatusConfirmed)
	f.reservation(t, "RES-B", "2026-06-30", 1, models.StatusPaid)
	f.reservation(t, "RES-C", "2026-06-30", 1, models.StatusCancelled)
	f.reservation(t, "RES-D", "2026-06-30", 2, models.StatusConfirmed)

	job := NewThankYouJob(f.db, f.notifier, f.composer, tokyo, &f.logger)
	report, err := job.Run(ctx, jobNow)
	require.NoError(t, err)
	assert.Equal(t, map[string]Outcome{
		"RES-A": OutcomeNotified,
		"RES-B": OutcomeNotified,
	}, outcomes(report))
	assert.Equal(t, 2, f.mailer.count())

	again, err := job.Run(ctx, jobNow)
	require.NoError(t, err)
	assert.Zero(t, again.Notified)
	assert.Equal(t, 2, f.mailer.count())
}

func TestPendingSyncJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := f.reservation(t, "RES-P", "2026-07-20", 1, models.StatusConfirmed)
	require.NoError(t, f.db.MarkSyncPending(ctx, r.ID))
	synced := f.reservation(t, "RES-S", "2026-07-21", 1, models.StatusConfirmed)
	require.NoError(t, f.db.MarkSyncPending(ctx, synced.ID))
	require.NoError(t, f.db.MarkSynced(ctx, synced.ID, jobNow))

	job := NewPendingSyncJob(f.db, f.notifier, f.composer, &f.logger)

	first, err := job.Run(ctx, jobNow)
	require.NoError(t, err)
	require.Len(t, first.Results, 1)
	assert.Equal(t, OutcomeUpdated, first.Results[0].Outcome)
	assert.Equal(t, "pending_count=1", first.Results[0].Detail)
	assert.Zero(t, f.mailer.count())

	second, err := job.Run(ctx, jobNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, second.Results[0].Outcome)
	require.Equal(t, 1, f.mailer.count())
	assert.Equal(t, []string{"ops@villa.test"}, f.mailer.sent[0].To)
	assert.True(t, strings.Contains(f.mailer.sent[0].Subject, "RES-P"))

	third, err := job.Run(ctx, jobNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, third.Results[0].Outcome)
	assert.Equal(t, "pending_count=3", third.Results[0].Detail)
	assert.Equal(t, 1, f.mailer.count())
}

func TestProcessingJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	near := f.reservation(t, "RES-NEAR", "2026-07-03", 1, models.StatusPending)
	edge := f.reservation(t, "RES-EDGE", "2026-07-04", 1, models.StatusPending)
	far := f.reservation(t, "RES-FAR", "2026-07-05", 1, models.StatusPending)
	done := f.reservation(t, "RES-DONE", "2026-07-02", 1, models.StatusConfirmed)

	job := NewProcessingJob(f.db, 3, tokyo, &f.logger)
	report, err := job.Run(ctx, jobNow)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Zero(t, report.Errors)

	for id, want := range map[int64]string{
		near.ID: models.StatusProcessing,
		edge.ID: models.StatusProcessing,
		far.ID:  models.StatusPending,
		done.ID: models.StatusConfirmed,
	} {
		got, err := f.db.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, got.ReservationNumber)
	}
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)
	reg := NewRegistry(
		NewReminderJob(f.db, f.notifier, f.composer, tokyo, &f.logger),
		NewThankYouJob(f.db, f.notifier, f.composer, tokyo, &f.logger),
		NewPendingSyncJob(f.db, f.notifier, f.composer, &f.logger),
		NewProcessingJob(f.db, 0, tokyo, &f.logger),
	)
	assert.Equal(t, []string{"pending-sync", "processing", "reminders", "thank-you"}, reg.Names())

	report, err := reg.Run(context.Background(), "processing", jobNow)
	require.NoError(t, err)
	assert.Equal(t, "processing", report.Job)
	assert.NotNil(t, report.Results)

	_, err = reg.Run(context.Background(), "vacuum", jobNow)
	assert.Error(t, err)
}
