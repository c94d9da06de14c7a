package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Cron       CronConfig       `yaml:"cron"`
	Booking    BookingConfig    `yaml:"booking"`
	Pricing    PricingConfig    `yaml:"pricing"`
	MealPlans  []MealPlanConfig `yaml:"meal_plans"`
	Email      EmailConfig      `yaml:"email"`
	PMS        PMSConfig        `yaml:"pms"`
	Payment    PaymentConfig    `yaml:"payment"`
	Affiliate  AffiliateConfig  `yaml:"affiliate"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Worker     WorkerConfig     `yaml:"worker"`
	Exports    ExportConfig     `yaml:"exports"`
	Backup     BackupConfig     `yaml:"backup"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

// APIAuthConfig guards the admin endpoints.
type APIAuthConfig struct {
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// CronConfig describes the header an external scheduler must send to trigger jobs.
type CronConfig struct {
	Header string `yaml:"header"`
	Secret string `yaml:"secret"`
}

type BookingConfig struct {
	Timezone       string `yaml:"timezone"`
	WindowStart    string `yaml:"window_start"`
	WindowEnd      string `yaml:"window_end"`
	Inventory      int    `yaml:"inventory"`
	ProcessingDays int    `yaml:"processing_days"`
}

// Location resolves the configured zone. Validate guarantees it loads.
func (b BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Window returns the sellable date range as civil dates (UTC midnight).
func (b BookingConfig) Window() (time.Time, time.Time) {
	start, _ := time.Parse(dateLayout, b.WindowStart)
	end, _ := time.Parse(dateLayout, b.WindowEnd)
	return start, end
}

type PricingConfig struct {
	BaseRate             float64        `yaml:"base_rate"`
	HighSeasonMultiplier float64        `yaml:"high_season_multiplier"`
	HighSeasons          []SeasonWindow `yaml:"high_seasons"`
}

// SeasonWindow is an inclusive MM-DD range; Start after End wraps the year end.
type SeasonWindow struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type MealPlanConfig struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Price float64  `yaml:"price"`
	Menus []string `yaml:"menus"`
}

type EmailConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	AdminEmail string `yaml:"admin_email"`
	OpsEmail   string `yaml:"ops_email"`
}

type PMSConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	BaseURL   string `yaml:"base_url"`
	SecretKey string `yaml:"secret_key"`
	Currency  string `yaml:"currency"`
}

type AffiliateConfig struct {
	CouponDiscount       float64 `yaml:"coupon_discount"`
	RewardPerReservation float64 `yaml:"reward_per_reservation"`
}

type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type WorkerConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// BackupConfig schedules VACUUM INTO snapshots of the SQLite file.
type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional outside of local development.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Cron.Secret == "" {
		return errors.New("cron secret is required")
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("invalid booking timezone %q: %w", c.Booking.Timezone, err)
	}

	start, err := time.Parse(dateLayout, c.Booking.WindowStart)
	if err != nil {
		return fmt.Errorf("invalid booking.window_start: %w", err)
	}
	end, err := time.Parse(dateLayout, c.Booking.WindowEnd)
	if err != nil {
		return fmt.Errorf("invalid booking.window_end: %w", err)
	}
	if end.Before(start) {
		return errors.New("booking window ends before it starts")
	}

	if c.Pricing.BaseRate <= 0 {
		return errors.New("pricing base_rate must be positive")
	}
	for _, season := range c.Pricing.HighSeasons {
		if err := validateMonthDay(season.Start); err != nil {
			return fmt.Errorf("invalid high season start: %w", err)
		}
		if err := validateMonthDay(season.End); err != nil {
			return fmt.Errorf("invalid high season end: %w", err)
		}
	}

	return ValidateMealPlans(c.MealPlans)
}

func ValidateMealPlans(plans []MealPlanConfig) error {
	ids := make(map[string]bool)
	for _, plan := range plans {
		id := strings.TrimSpace(plan.ID)
		if id == "" {
			return fmt.Errorf("meal plan '%s' has empty id", plan.Name)
		}
		if ids[id] {
			return fmt.Errorf("duplicate meal plan id found: %s", id)
		}
		if plan.Price < 0 {
			return fmt.Errorf("meal plan %s has negative price", id)
		}
		ids[id] = true
	}
	return nil
}

func validateMonthDay(v string) error {
	_, err := time.Parse("01-02", v)
	return err
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Cron.Header == "" {
		c.Cron.Header = "x-cron-trigger"
	}

	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Asia/Tokyo"
	}
	if c.Booking.Inventory == 0 {
		c.Booking.Inventory = 2
	}
	if c.Booking.ProcessingDays == 0 {
		c.Booking.ProcessingDays = 3
	}
	if c.Pricing.HighSeasonMultiplier == 0 {
		c.Pricing.HighSeasonMultiplier = 1.5
	}

	if c.PMS.Timeout == 0 {
		c.PMS.Timeout = 30 * time.Second
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "jpy"
	}
	if c.Affiliate.CouponDiscount == 0 {
		c.Affiliate.CouponDiscount = 5000
	}
	if c.Affiliate.RewardPerReservation == 0 {
		c.Affiliate.RewardPerReservation = 3000
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "reservation.events"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
