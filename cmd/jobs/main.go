// Command jobs runs one scheduled batch job and prints its report as JSON.
// It is the command-line twin of POST /api/cron/{job}. With -payouts it
// writes the monthly affiliate workbook to the exports directory instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"villa/internal/config"
	"villa/internal/database"
	"villa/internal/email"
	"villa/internal/export"
	"villa/internal/jobs"
	"villa/internal/logging"
	"villa/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	name := flag.String("job", "", "job to run")
	at := flag.String("at", "", "override the trigger time (RFC3339)")
	payouts := flag.String("payouts", "", "write the affiliate payout workbook for YYYY-MM instead of running a job")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := baseLogger.With().Str("component", "jobs-main").Logger()

	now := time.Now()
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	planNames := make(map[string]string, len(cfg.MealPlans))
	for _, p := range cfg.MealPlans {
		planNames[p.ID] = p.Name
	}
	composer, err := email.NewComposer(cfg.Email.AdminEmail, cfg.Email.OpsEmail, planNames)
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	notifier := service.NewNotifier(email.NewMailer(cfg.Email, &logger), db, &logger)
	loc := cfg.Booking.Location()

	registry := jobs.NewRegistry(
		jobs.NewReminderJob(db, notifier, composer, loc, &logger),
		jobs.NewThankYouJob(db, notifier, composer, loc, &logger),
		jobs.NewPendingSyncJob(db, notifier, composer, &logger),
		jobs.NewProcessingJob(db, cfg.Booking.ProcessingDays, loc, &logger),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *payouts != "" {
		period, err := time.Parse("2006-01", *payouts)
		if err != nil {
			return fmt.Errorf("-payouts must be YYYY-MM: %w", err)
		}
		affiliates := service.NewAffiliateService(db, db, notifier, composer, cfg.Affiliate.RewardPerReservation, loc, &logger)
		rows, err := affiliates.MonthlyStats(ctx, period.Year(), period.Month())
		if err != nil {
			return err
		}
		path, err := export.SavePayouts(cfg.Exports.Path, period.Year(), period.Month(), rows)
		if err != nil {
			return err
		}
		logger.Info().Str("file_path", path).Int("affiliates", len(rows)).Msg("Payout workbook written")
		return nil
	}

	if _, ok := registry.Get(*name); !ok {
		return fmt.Errorf("-job must be one of: %s", strings.Join(registry.Names(), ", "))
	}

	report, err := registry.Run(ctx, *name, now)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
