package service

import (
	"context"
	"fmt"
	"time"

	"villa/internal/domain"
	"villa/internal/metrics"
	"villa/internal/models"

	"github.com/rs/zerolog"
)

// Notifier sends transactional mail and records it in the send log so a
// message goes out at most once per (reservation, type, recipient).
type Notifier struct {
	mailer domain.Mailer
	logs   domain.LogRepository
	now    func() time.Time
	logger *zerolog.Logger
}

func NewNotifier(mailer domain.Mailer, logs domain.LogRepository, logger *zerolog.Logger) *Notifier {
	return &Notifier{mailer: mailer, logs: logs, now: time.Now, logger: logger}
}

// SendOnce delivers msg unless the log already has it. sent is false when skipped.
func (n *Notifier) SendOnce(ctx context.Context, reservationID int64, emailType, recipient string, msg domain.EmailMessage) (sent bool, err error) {
	done, err := n.logs.HasEmailLog(ctx, reservationID, emailType, recipient)
	if err != nil {
		return false, fmt.Errorf("check email log: %w", err)
	}
	if done {
		return false, nil
	}

	if err := n.Send(ctx, emailType, msg); err != nil {
		return false, err
	}

	entry := &models.EmailSendLog{
		ReservationID: reservationID,
		EmailType:     emailType,
		RecipientType: recipient,
		SentAt:        n.now(),
	}
	if err := n.logs.CreateEmailLog(ctx, entry); err != nil {
		// The mail is out; a missing log row only risks a duplicate later.
		n.logger.Error().Err(err).Int64("reservation_id", reservationID).Str("type", emailType).Msg("Failed to write email log")
	}
	return true, nil
}

// Send delivers without consulting the send log.
func (n *Notifier) Send(ctx context.Context, emailType string, msg domain.EmailMessage) error {
	err := n.mailer.Send(ctx, msg)
	metrics.IncEmail(emailType, err == nil)
	if err != nil {
		return fmt.Errorf("send %s email: %w", emailType, err)
	}
	return nil
}
