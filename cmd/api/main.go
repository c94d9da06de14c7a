package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"villa/internal/api"
	"villa/internal/availability"
	"villa/internal/broker"
	"villa/internal/config"
	"villa/internal/database"
	"villa/internal/domain"
	"villa/internal/email"
	"villa/internal/events"
	"villa/internal/jobs"
	"villa/internal/logging"
	"villa/internal/metrics"
	"villa/internal/payment"
	"villa/internal/pms"
	"villa/internal/pricing"
	"villa/internal/repository"
	"villa/internal/service"
	"villa/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const calendarCacheTTL = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	retry := worker.PolicyFromConfig(cfg.Worker)
	pmsWorker := worker.NewPMSSyncWorker(db, pms.NewClient(cfg.PMS), redisClient, retry, cfg.Worker.PollInterval, &logger)
	go pmsWorker.Start(ctx)
	go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)

	prices := pricing.NewPriceTable(cfg.Pricing, cfg.Booking)
	catalog := pricing.NewMealCatalog(cfg.MealPlans)
	var cache domain.CalendarCache = repository.NewMemoryCalendarCache(calendarCacheTTL)
	if redisClient != nil {
		cache = repository.NewFailoverCalendarCache(repository.NewRedisCalendarCache(redisClient, calendarCacheTTL), cache, &logger)
	}
	calendar := availability.NewService(db, prices, cache, cfg.Booking.Inventory, &logger)

	eventBus := events.NewEventBus()
	subscribeReservationEvents(ctx, cfg, eventBus, calendar, &logger)

	composer, err := email.NewComposer(cfg.Email.AdminEmail, cfg.Email.OpsEmail, planNames(cfg.MealPlans))
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	notifier := service.NewNotifier(email.NewMailer(cfg.Email, &logger), db, &logger)
	loc := cfg.Booking.Location()

	reservations := service.NewReservationService(
		db, calendar, prices, catalog, payment.NewClient(cfg.Payment), pmsWorker,
		notifier, composer, eventBus,
		service.ReservationSettings{
			Inventory:      cfg.Booking.Inventory,
			CouponDiscount: cfg.Affiliate.CouponDiscount,
			Currency:       cfg.Payment.Currency,
			Location:       loc,
		},
		&logger,
	)
	affiliates := service.NewAffiliateService(db, db, notifier, composer, cfg.Affiliate.RewardPerReservation, loc, &logger)

	registry := jobs.NewRegistry(
		jobs.NewReminderJob(db, notifier, composer, loc, &logger),
		jobs.NewThankYouJob(db, notifier, composer, loc, &logger),
		jobs.NewPendingSyncJob(db, notifier, composer, &logger),
		jobs.NewProcessingJob(db, cfg.Booking.ProcessingDays, loc, &logger),
	)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Cron, api.Deps{
		Calendar:     calendar,
		Reservations: reservations,
		Affiliates:   affiliates,
		Jobs:         registry,
		Ready:        db.HealthCheck,
	}, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

// initRedis returns nil when Redis is not configured or unreachable; the
// calendar cache then runs from memory and the PMS worker from its local queue.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func subscribeReservationEvents(ctx context.Context, cfg *config.Config, bus *events.EventBus, calendar *availability.Service, logger *zerolog.Logger) {
	bus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: handler failed")
	})

	bus.Subscribe(func(ev *events.Event) error {
		calendar.Invalidate(ctx)
		return nil
	}, events.AllReservationEvents...)

	bus.Subscribe(func(ev *events.Event) error {
		var payload events.ReservationEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		logger.Info().
			Str("event", ev.Type).
			Str("reservation", payload.ReservationNumber).
			Str("status", payload.Status).
			Msg("reservation event")
		return nil
	}, events.AllReservationEvents...)

	if cfg.AMQP.URL == "" {
		return
	}
	publisher := broker.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
	bus.Subscribe(publisher.Handler(), events.AllReservationEvents...)
}

func planNames(plans []config.MealPlanConfig) map[string]string {
	names := make(map[string]string, len(plans))
	for _, p := range plans {
		names[p.ID] = p.Name
	}
	return names
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
