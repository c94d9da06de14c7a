package email

import (
	"context"
	"errors"
	"io"
	"net/smtp"
	"testing"
	"time"

	"villa/internal/config"
	"villa/internal/domain"
	"villa/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReservation() *models.Reservation {
	return &models.Reservation{
		ID:                1,
		ReservationNumber: "RES-1767225600000",
		GuestName:         "Aiko Tanaka",
		Email:             "aiko@example.com",
		CheckInDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		NumNights:         2,
		NumUnits:          1,
		Guests: models.GuestCounts{
			"2026-08-01": {1: {Male: 2, Female: 1}},
		},
		MealPlans: models.MealSelections{
			"2026-08-01": {1: {"bbq": {Count: 3, UnitPrice: 4500, Menus: map[string]int{"beef": 2, "seafood": 1}}}},
		},
		TotalAmount:     1234500,
		PaymentMethod:   models.PaymentMethodOnsite,
		CancellationFee: 50000,
		Notes:           "Late arrival",
	}
}

func newTestComposer(t *testing.T) *Composer {
	c, err := NewComposer("admin@villa.test", "", map[string]string{"bbq": "BBQ dinner"})
	require.NoError(t, err)
	return c
}

func TestComposer(t *testing.T) {
	c := newTestComposer(t)
	r := testReservation()

	t.Run("Confirmation", func(t *testing.T) {
		msg, err := c.Confirmation(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"aiko@example.com"}, msg.To)
		assert.Contains(t, msg.Subject, "RES-1767225600000")
		assert.Contains(t, msg.HTML, "Aiko Tanaka")
		assert.Contains(t, msg.HTML, "2026-08-03")
		assert.Contains(t, msg.HTML, "¥1,234,500")
		assert.Contains(t, msg.HTML, "BBQ dinner x3")
	})

	t.Run("ConfirmationAdmin", func(t *testing.T) {
		msg, err := c.ConfirmationAdmin(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"admin@villa.test"}, msg.To)
		assert.Contains(t, msg.HTML, "Late arrival")
	})

	t.Run("ReminderTiers", func(t *testing.T) {
		msg, err := c.Reminder(r, 10)
		require.NoError(t, err)
		assert.Contains(t, msg.Subject, "10 days")
		assert.Contains(t, msg.HTML, "in 10 days")
		assert.NotContains(t, msg.HTML, "BBQ dinner")

		final, err := c.Reminder(r, 1)
		require.NoError(t, err)
		assert.Contains(t, final.Subject, "tomorrow")
		assert.Contains(t, final.HTML, "BBQ dinner x3")
		assert.Contains(t, final.HTML, "beef x2, seafood x1")
		assert.Contains(t, final.HTML, "2 male, 1 female")
	})

	t.Run("Cancellation", func(t *testing.T) {
		msg, err := c.Cancellation(r)
		require.NoError(t, err)
		assert.Contains(t, msg.HTML, "¥50,000")

		admin, err := c.CancellationAdmin(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"admin@villa.test"}, admin.To)
	})

	t.Run("PendingAlertFallsBackToAdmin", func(t *testing.T) {
		msg, err := c.PendingAlert(r)
		require.NoError(t, err)
		assert.Equal(t, []string{"admin@villa.test"}, msg.To)
	})

	t.Run("ThankYou", func(t *testing.T) {
		msg, err := c.ThankYou(r)
		require.NoError(t, err)
		assert.Contains(t, msg.HTML, "2026-08-01 to 2026-08-03")
	})

	t.Run("AffiliateWelcome", func(t *testing.T) {
		msg, err := c.AffiliateWelcome(&models.Affiliate{Name: "Ken", Email: "ken@example.com", AffiliateCode: "AFF1", CouponCode: "KEN5000"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ken@example.com"}, msg.To)
		assert.Contains(t, msg.HTML, "KEN5000")
	})

	t.Run("EscapesGuestInput", func(t *testing.T) {
		evil := testReservation()
		evil.GuestName = "<script>x</script>"
		msg, err := c.Confirmation(evil)
		require.NoError(t, err)
		assert.NotContains(t, msg.HTML, "<script>")
	})
}

func TestFormatYen(t *testing.T) {
	assert.Equal(t, "¥0", FormatYen(0))
	assert.Equal(t, "¥999", FormatYen(999))
	assert.Equal(t, "¥1,000", FormatYen(1000))
	assert.Equal(t, "¥100,000", FormatYen(100000))
	assert.Equal(t, "-¥3,600", FormatYen(-3600))
}

func TestSMTPMailer(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cfg := config.EmailConfig{Host: "smtp.test", Port: 587, Username: "user", Password: "pw", From: "villa@villa.test"}

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	m := NewSMTPMailer(cfg, &logger)
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	err := m.Send(context.Background(), domain.EmailMessage{To: []string{"a@example.com"}, Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.test:587", gotAddr)
	assert.Equal(t, "villa@villa.test", gotFrom)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, string(gotBody), "Subject: Hi\r\n")
	assert.Contains(t, string(gotBody), "Content-Type: text/html")

	t.Run("NoRecipients", func(t *testing.T) {
		assert.Error(t, m.Send(context.Background(), domain.EmailMessage{Subject: "x"}))
	})

	t.Run("RelayError", func(t *testing.T) {
		m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
		err := m.Send(context.Background(), domain.EmailMessage{To: []string{"a@example.com"}, Subject: "x"})
		assert.ErrorContains(t, err, "421 busy")
	})
}

func TestNewMailer(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, isLog := NewMailer(config.EmailConfig{}, &logger).(*LogMailer)
	assert.True(t, isLog)
	_, isSMTP := NewMailer(config.EmailConfig{Host: "smtp.test"}, &logger).(*SMTPMailer)
	assert.True(t, isSMTP)
}
