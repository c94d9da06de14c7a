package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"villa/internal/config"
	"villa/internal/jobs"
	"villa/internal/models"
	"villa/internal/pricing"
	"villa/internal/service"

	"github.com/rs/zerolog"
)

type CalendarReader interface {
	Calendar(ctx context.Context, from, to time.Time) ([]models.CalendarDay, error)
}

type Reservations interface {
	MealPlans() []pricing.MealPlan
	Quote(ctx context.Context, in service.QuoteInput) (pricing.StayCost, error)
	Create(ctx context.Context, in service.CreateReservationInput) (*service.CreateReservationResult, error)
	ConfirmPayment(ctx context.Context, number, guestEmail string) (*service.PaymentResult, error)
	Lookup(ctx context.Context, number, guestEmail string) (*service.LookupResult, error)
	Cancel(ctx context.Context, number, guestEmail string) (*service.CancelResult, error)
}

type Affiliates interface {
	Register(ctx context.Context, in service.RegisterAffiliateInput) (*service.RegisterResult, error)
	List(ctx context.Context) ([]models.Affiliate, error)
	StatsForGuest(ctx context.Context, code, affiliateEmail string) (*models.AffiliateStats, error)
	Stats(ctx context.Context, code string) (*models.AffiliateStats, error)
	MonthlyStats(ctx context.Context, year int, month time.Month) ([]models.AffiliateStats, error)
	RecordPayout(ctx context.Context, code string, in service.PayoutInput) (*models.AffiliatePayout, error)
}

type JobRunner interface {
	Get(name string) (jobs.Job, bool)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Calendar     CalendarReader
	Reservations Reservations
	Affiliates   Affiliates
	Jobs         JobRunner
	// Ready reports whether backing stores answer. Nil means always ready.
	Ready func(ctx context.Context) error
	Now   func() time.Time
}

// HTTPServer exposes the guest, admin and cron endpoints.
type HTTPServer struct {
	cfg    config.APIConfig
	cron   config.CronConfig
	deps   Deps
	auth   *AdminAuth
	server *http.Server
	logger zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, cron config.CronConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	srv := &HTTPServer{
		cfg:    cfg,
		cron:   cron,
		deps:   deps,
		auth:   NewAdminAuth(cfg),
		logger: logger.With().Str("component", "http").Logger(),
	}

	handler := requestIDMiddleware(loggingMiddleware(srv.logger, recoverMiddleware(srv.logger, srv.routes())))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/meal-plans", s.handleMealPlans)
	mux.HandleFunc("POST /api/quote", s.handleQuote)
	mux.HandleFunc("POST /api/reservations", s.handleCreateReservation)
	mux.HandleFunc("GET /api/reservations/{number}", s.handleLookup)
	mux.HandleFunc("POST /api/reservations/{number}/payment/confirm", s.handleConfirmPayment)
	mux.HandleFunc("POST /api/reservations/{number}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/affiliates/{code}/stats", s.handleAffiliateGuestStats)

	mux.Handle("POST /api/cron/{job}", cronGuard(s.cron, http.HandlerFunc(s.handleCron)))

	admin := func(h http.HandlerFunc) http.Handler {
		return s.auth.Require(permAdminAffiliates, h)
	}
	mux.Handle("GET /api/admin/affiliates", admin(s.handleListAffiliates))
	mux.Handle("POST /api/admin/affiliates", admin(s.handleRegisterAffiliate))
	mux.Handle("GET /api/admin/affiliates/export", admin(s.handleExportPayouts))
	mux.Handle("GET /api/admin/affiliates/{code}/stats", admin(s.handleAffiliateStats))
	mux.Handle("POST /api/admin/affiliates/{code}/payouts", admin(s.handleRecordPayout))

	return mux
}

// Handler exposes the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
