package pms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"villa/internal/config"
	"villa/internal/domain"
	"villa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReservation(t *testing.T) {
	var got domain.PMSReservation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create_reservation", r.URL.Path)
		assert.Equal(t, "pms-key", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(config.PMSConfig{BaseURL: srv.URL + "/", APIKey: "pms-key"})
	err := c.CreateReservation(context.Background(), domain.PMSReservation{
		ReservationNumber: "RES-1",
		CheckInDate:       "2026-08-01",
		NumNights:         2,
	})
	require.NoError(t, err)
	assert.Equal(t, "RES-1", got.ReservationNumber)
	assert.Equal(t, 2, got.NumNights)
}

func TestCreateReservationFailures(t *testing.T) {
	t.Run("Non2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "duplicate", http.StatusConflict)
		}))
		defer srv.Close()

		err := NewClient(config.PMSConfig{BaseURL: srv.URL}).CreateReservation(context.Background(), domain.PMSReservation{})
		assert.ErrorContains(t, err, "pms http 409: duplicate")
		assert.ErrorIs(t, err, domain.ErrPMSRejected)
		assert.NotErrorIs(t, err, domain.ErrPMSOutcomeUnknown)
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := NewClient(config.PMSConfig{BaseURL: srv.URL}).CreateReservation(context.Background(), domain.PMSReservation{})
		assert.ErrorContains(t, err, "pms http 503")
		assert.NotErrorIs(t, err, domain.ErrPMSRejected)
		assert.NotErrorIs(t, err, domain.ErrPMSOutcomeUnknown)
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewClient(config.PMSConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
		err := c.CreateReservation(context.Background(), domain.PMSReservation{})
		assert.ErrorIs(t, err, domain.ErrPMSOutcomeUnknown)
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := NewClient(config.PMSConfig{BaseURL: url}).CreateReservation(context.Background(), domain.PMSReservation{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrPMSOutcomeUnknown)
	})
}

func TestNewPayload(t *testing.T) {
	r := &models.Reservation{
		ReservationNumber: "RES-9",
		CheckInDate:       time.Date(2026, 12, 30, 0, 0, 0, 0, time.UTC),
		NumNights:         3,
		NumUnits:          2,
		TotalAmount:       120000,
		PaymentAmount:     115000,
		PaymentMethod:     models.PaymentMethodCredit,
	}
	p := NewPayload(r)
	assert.Equal(t, "2026-12-30", p.CheckInDate)
	assert.Equal(t, "2027-01-02", p.CheckOutDate)
	assert.Equal(t, 115000.0, p.PaymentAmount)
}
