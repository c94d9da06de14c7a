package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"villa/internal/apperr"
	"villa/internal/models"
)

const reservationColumns = `id, reservation_number, guest_name, email, phone, address, notes,
        check_in_date, num_nights, num_units, guest_counts, room_rate, meal_plans,
        total_meal_price, total_amount, discount_amount, payment_amount, coupon_code,
        reservation_status, payment_status, payment_method, payment_intent_id,
        cancellation_fee, cancelled_at, sync_status, pending_count,
        last_pending_checked_at, synced_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r                   models.Reservation
		checkIn             string
		guestsRaw, mealsRaw string
	)
	err := row.Scan(
		&r.ID, &r.ReservationNumber, &r.GuestName, &r.Email, &r.Phone, &r.Address, &r.Notes,
		&checkIn, &r.NumNights, &r.NumUnits, &guestsRaw, &r.RoomRate, &mealsRaw,
		&r.TotalMealPrice, &r.TotalAmount, &r.DiscountAmount, &r.PaymentAmount, &r.CouponCode,
		&r.Status, &r.PaymentStatus, &r.PaymentMethod, &r.PaymentIntentID,
		&r.CancellationFee, &r.CancelledAt, &r.SyncStatus, &r.PendingCount,
		&r.LastPendingCheck, &r.SyncedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.CheckInDate, err = models.ParseDate(checkIn); err != nil {
		return nil, fmt.Errorf("reservation %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(guestsRaw), &r.Guests); err != nil {
		return nil, fmt.Errorf("reservation %d: decode guest counts: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(mealsRaw), &r.MealPlans); err != nil {
		return nil, fmt.Errorf("reservation %d: decode meal plans: %w", r.ID, err)
	}
	return &r, nil
}

func (db *DB) queryReservations(ctx context.Context, where string, args ...interface{}) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations ` + where
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return out, nil
}

func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	guests, err := json.Marshal(nonNilGuests(r.Guests))
	if err != nil {
		return fmt.Errorf("encode guest counts: %w", err)
	}
	meals, err := json.Marshal(nonNilMeals(r.MealPlans))
	if err != nil {
		return fmt.Errorf("encode meal plans: %w", err)
	}

	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	query := `INSERT INTO reservations (
            reservation_number, guest_name, email, phone, address, notes,
            check_in_date, num_nights, num_units, guest_counts, room_rate, meal_plans,
            total_meal_price, total_amount, discount_amount, payment_amount, coupon_code,
            reservation_status, payment_status, payment_method, payment_intent_id,
            sync_status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.ExecContext(ctx, query,
		r.ReservationNumber, r.GuestName, r.Email, r.Phone, r.Address, r.Notes,
		models.FormatDate(r.CheckInDate), r.NumNights, r.NumUnits, string(guests), r.RoomRate, string(meals),
		r.TotalMealPrice, r.TotalAmount, r.DiscountAmount, r.PaymentAmount, r.CouponCode,
		r.Status, r.PaymentStatus, r.PaymentMethod, r.PaymentIntentID,
		r.SyncStatus, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, err)
	}
	return r, nil
}

func (db *DB) GetReservationByNumber(ctx context.Context, number string) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE reservation_number = ?`, number)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %s: %w", number, err)
	}
	return r, nil
}

// ListReservationsOverlapping returns active reservations holding any night in [from, to].
func (db *DB) ListReservationsOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	args := []interface{}{models.FormatDate(to), models.FormatDate(from)}
	args = append(args, stringArgs(models.ActiveStatuses)...)
	return db.queryReservations(ctx, `
        WHERE check_in_date <= ?
        AND date(check_in_date, '+' || num_nights || ' days') > ?
        AND reservation_status IN (`+placeholders(len(models.ActiveStatuses))+`)
        ORDER BY check_in_date, id`, args...)
}

func (db *DB) ListReservationsByCheckIn(ctx context.Context, dates []time.Time, statuses []string) ([]models.Reservation, error) {
	if len(dates) == 0 || len(statuses) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(dates)+len(statuses))
	for _, d := range dates {
		args = append(args, models.FormatDate(d))
	}
	args = append(args, stringArgs(statuses)...)
	return db.queryReservations(ctx, `
        WHERE check_in_date IN (`+placeholders(len(dates))+`)
        AND reservation_status IN (`+placeholders(len(statuses))+`)
        ORDER BY check_in_date, id`, args...)
}

func (db *DB) ListReservationsByCheckOut(ctx context.Context, checkOut time.Time, statuses []string) ([]models.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []interface{}{models.FormatDate(checkOut)}
	args = append(args, stringArgs(statuses)...)
	return db.queryReservations(ctx, `
        WHERE date(check_in_date, '+' || num_nights || ' days') = ?
        AND reservation_status IN (`+placeholders(len(statuses))+`)
        ORDER BY id`, args...)
}

func (db *DB) ListReservationsCheckInBetween(ctx context.Context, from, to time.Time, statuses []string) ([]models.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []interface{}{models.FormatDate(from), models.FormatDate(to)}
	args = append(args, stringArgs(statuses)...)
	return db.queryReservations(ctx, `
        WHERE check_in_date BETWEEN ? AND ?
        AND reservation_status IN (`+placeholders(len(statuses))+`)
        ORDER BY check_in_date, id`, args...)
}

func (db *DB) ListReservationsBySyncStatus(ctx context.Context, syncStatus string) ([]models.Reservation, error) {
	return db.queryReservations(ctx, `WHERE sync_status = ? ORDER BY id`, syncStatus)
}

func (db *DB) ListReservationsByCoupon(ctx context.Context, couponCode string) ([]models.Reservation, error) {
	return db.queryReservations(ctx, `WHERE coupon_code = ? ORDER BY created_at, id`, couponCode)
}

// UpdateReservationStatus moves a reservation to status only when its current
// status is one of from.
func (db *DB) UpdateReservationStatus(ctx context.Context, id int64, from []string, to string) error {
	if len(from) == 0 {
		return fmt.Errorf("update reservation %d: no source statuses", id)
	}
	args := []interface{}{to, time.Now(), id}
	args = append(args, stringArgs(from)...)
	result, err := db.ExecContext(ctx, `
        UPDATE reservations SET reservation_status = ?, updated_at = ?
        WHERE id = ? AND reservation_status IN (`+placeholders(len(from))+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	return db.expectOneRow(ctx, result, id, apperr.ErrInvalidTransition)
}

func (db *DB) UpdatePaymentState(ctx context.Context, id int64, paymentStatus, status string) error {
	result, err := db.ExecContext(ctx, `
        UPDATE reservations SET payment_status = ?, reservation_status = ?, updated_at = ?
        WHERE id = ?`, paymentStatus, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment state: %w", err)
	}
	return db.expectOneRow(ctx, result, id, apperr.ErrReservationNotFound)
}

func (db *DB) SetPaymentIntent(ctx context.Context, id int64, intentID string) error {
	_, err := db.ExecContext(ctx, `UPDATE reservations SET payment_intent_id = ?, updated_at = ? WHERE id = ?`,
		intentID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set payment intent: %w", err)
	}
	return nil
}

// CancelReservation is one-way: rows already cancelled are left untouched.
func (db *DB) CancelReservation(ctx context.Context, id int64, status string, fee float64, at time.Time) error {
	result, err := db.ExecContext(ctx, `
        UPDATE reservations
        SET reservation_status = ?, cancellation_fee = ?, cancelled_at = ?, updated_at = ?
        WHERE id = ? AND reservation_status NOT IN (?, ?)`,
		status, fee, at, at, id, models.StatusCancelled, models.StatusCustomerCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	return db.expectOneRow(ctx, result, id, apperr.ErrAlreadyCancelled)
}

func (db *DB) MarkSyncPending(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `
        UPDATE reservations SET sync_status = ?, updated_at = ?
        WHERE id = ? AND sync_status <> ?`,
		models.SyncStatusPending, time.Now(), id, models.SyncStatusSynced)
	if err != nil {
		return fmt.Errorf("failed to mark sync pending: %w", err)
	}
	return nil
}

func (db *DB) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	_, err := db.ExecContext(ctx, `
        UPDATE reservations SET sync_status = ?, synced_at = ?, updated_at = ? WHERE id = ?`,
		models.SyncStatusSynced, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark synced: %w", err)
	}
	return nil
}

// IncrementPendingCount bumps pending_count and returns the new value.
func (db *DB) IncrementPendingCount(ctx context.Context, id int64, at time.Time) (int, error) {
	_, err := db.ExecContext(ctx, `
        UPDATE reservations
        SET pending_count = pending_count + 1, last_pending_checked_at = ?, updated_at = ?
        WHERE id = ?`, at, at, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment pending count: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT pending_count FROM reservations WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read pending count: %w", err)
	}
	return count, nil
}

// expectOneRow maps "nothing updated" to notFound, or to whenExists if the row exists.
func (db *DB) expectOneRow(ctx context.Context, result sql.Result, id int64, whenExists error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrReservationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check reservation %d: %w", id, err)
	}
	return whenExists
}

func nonNilGuests(g models.GuestCounts) models.GuestCounts {
	if g == nil {
		return models.GuestCounts{}
	}
	return g
}

func nonNilMeals(m models.MealSelections) models.MealSelections {
	if m == nil {
		return models.MealSelections{}
	}
	return m
}
