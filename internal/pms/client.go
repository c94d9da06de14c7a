// Package pms delivers reservations to the property-management system.
package pms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"villa/internal/config"
	"villa/internal/domain"
	"villa/internal/models"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.PMSConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateReservation posts one reservation. The PMS gives no idempotency
// guarantee, so errors are classified for the caller: a failed dial or a 5xx
// is safe to resend, a 4xx wraps domain.ErrPMSRejected, and anything that may
// have reached the PMS (timeouts, dropped responses) wraps
// domain.ErrPMSOutcomeUnknown.
func (c *Client) CreateReservation(ctx context.Context, payload domain.PMSReservation) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/create_reservation", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if neverSent(err) {
			return fmt.Errorf("pms request: %w", err)
		}
		return fmt.Errorf("pms request: %w: %w", domain.ErrPMSOutcomeUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode < 500 {
			return fmt.Errorf("pms http %d: %s: %w", resp.StatusCode, msg, domain.ErrPMSRejected)
		}
		return fmt.Errorf("pms http %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// neverSent reports whether the request failed before a connection existed.
func neverSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// NewPayload maps a stored reservation onto the PMS request body.
func NewPayload(r *models.Reservation) domain.PMSReservation {
	return domain.PMSReservation{
		ReservationNumber: r.ReservationNumber,
		GuestName:         r.GuestName,
		Email:             r.Email,
		Phone:             r.Phone,
		CheckInDate:       models.FormatDate(r.CheckInDate),
		CheckOutDate:      models.FormatDate(r.CheckOutDate()),
		NumNights:         r.NumNights,
		NumUnits:          r.NumUnits,
		Guests:            r.Guests,
		MealPlans:         r.MealPlans,
		TotalAmount:       r.TotalAmount,
		PaymentAmount:     r.PaymentAmount,
		PaymentMethod:     r.PaymentMethod,
		PaymentStatus:     r.PaymentStatus,
		Notes:             r.Notes,
	}
}
