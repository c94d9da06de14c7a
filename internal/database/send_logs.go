package database

import (
	"context"
	"fmt"
	"time"

	"villa/internal/models"
)

func (db *DB) HasEmailLog(ctx context.Context, reservationID int64, emailType, recipientType string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM email_send_logs
        WHERE reservation_id = ? AND email_type = ? AND recipient_type = ?`,
		reservationID, emailType, recipientType).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check email log: %w", err)
	}
	return n > 0, nil
}

// CreateEmailLog ignores duplicates so a retried trigger cannot fail on the log write.
func (db *DB) CreateEmailLog(ctx context.Context, entry *models.EmailSendLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}
	result, err := db.ExecContext(ctx, `
        INSERT OR IGNORE INTO email_send_logs (reservation_id, email_type, recipient_type, sent_at)
        VALUES (?, ?, ?, ?)`,
		entry.ReservationID, entry.EmailType, entry.RecipientType, entry.SentAt)
	if err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

func (db *DB) HasReminderLog(ctx context.Context, reservationID int64, reminderType string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM reminder_logs WHERE reservation_id = ? AND reminder_type = ?`,
		reservationID, reminderType).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check reminder log: %w", err)
	}
	return n > 0, nil
}

func (db *DB) CreateReminderLog(ctx context.Context, entry *models.ReminderLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}
	result, err := db.ExecContext(ctx, `
        INSERT OR IGNORE INTO reminder_logs (reservation_id, reminder_type, sent_at) VALUES (?, ?, ?)`,
		entry.ReservationID, entry.ReminderType, entry.SentAt)
	if err != nil {
		return fmt.Errorf("failed to create reminder log: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}
