package models

// Reservation lifecycle statuses.
const (
	StatusPending           = "pending"
	StatusConfirmed         = "confirmed"
	StatusProcessing        = "processing"
	StatusPaid              = "paid"
	StatusCancelled         = "cancelled"
	StatusCustomerCancelled = "customer_cancelled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

const (
	PaymentMethodCredit = "credit"
	PaymentMethodOnsite = "onsite"
)

// SyncStatus values for PMS delivery. Empty means nothing to deliver yet.
const (
	SyncStatusNone    = ""
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
)

const (
	ReminderType33Days   = "33_days"
	ReminderType10Days   = "10_days"
	ReminderType1Day     = "1_day"
	ReminderTypeThankYou = "thank_you"
)

const (
	EmailTypeConfirmation = "confirmation"
	EmailTypeCancellation = "cancellation"
	EmailTypePendingAlert = "pending_alert"

	RecipientGuest = "guest"
	RecipientAdmin = "admin"
)

const (
	// ReservationNumberPrefix marks reservations created through this application.
	ReservationNumberPrefix = "RES"

	// DefaultInventory is the number of rentable units per night.
	DefaultInventory = 2

	// PendingAlertThreshold is the pending_count at which ops are alerted.
	PendingAlertThreshold = 2
)

// ActiveStatuses consume inventory on the calendar.
var ActiveStatuses = []string{StatusPending, StatusConfirmed, StatusPaid, StatusProcessing}

// IsActiveStatus reports whether a reservation in this status holds units.
func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsCancelledStatus covers both payment failure and guest cancellation.
func IsCancelledStatus(status string) bool {
	return status == StatusCancelled || status == StatusCustomerCancelled
}
