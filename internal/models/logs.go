package models

import "time"

// EmailSendLog marks a transactional email as sent.
type EmailSendLog struct {
	ID            int64     `json:"id"`
	ReservationID int64     `json:"reservation_id"`
	EmailType     string    `json:"email_type"`
	RecipientType string    `json:"recipient_type"`
	SentAt        time.Time `json:"sent_at"`
}

// ReminderLog marks a reminder tier (or thank-you) as sent.
type ReminderLog struct {
	ID            int64     `json:"id"`
	ReservationID int64     `json:"reservation_id"`
	ReminderType  string    `json:"reminder_type"`
	SentAt        time.Time `json:"sent_at"`
}
