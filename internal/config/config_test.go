package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "villa.db"},
		Cron:     CronConfig{Secret: "s3cret"},
		Booking: BookingConfig{
			Timezone:    "Asia/Tokyo",
			WindowStart: "2026-04-01",
			WindowEnd:   "2027-03-31",
		},
		Pricing: PricingConfig{BaseRate: 20000},
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("VILLA_CRON_SECRET", "from-env")

	yamlContent := `
database:
  path: "test.db"
cron:
  secret: "${VILLA_CRON_SECRET}"
booking:
  window_start: "2026-04-01"
  window_end: "2027-03-31"
pricing:
  base_rate: 20000
  high_seasons:
    - start: "07-15"
      end: "08-31"
meal_plans:
  - id: bbq
    name: "BBQ dinner"
    price: 4500
    menus: ["beef", "seafood"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Cron.Secret)
	assert.Equal(t, "x-cron-trigger", cfg.Cron.Header)
	assert.Equal(t, "Asia/Tokyo", cfg.Booking.Timezone)
	assert.Equal(t, 2, cfg.Booking.Inventory)
	assert.Equal(t, 1.5, cfg.Pricing.HighSeasonMultiplier)
	assert.Equal(t, 30*time.Second, cfg.PMS.Timeout)
	assert.Equal(t, 5000.0, cfg.Affiliate.CouponDiscount)
	assert.Equal(t, 24*time.Hour, cfg.Backup.Interval)
	assert.False(t, cfg.Backup.Enabled)
	require.Len(t, cfg.MealPlans, 1)
	assert.Equal(t, []string{"beef", "seafood"}, cfg.MealPlans[0].Menus)

	start, end := cfg.Booking.Window()
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, "Asia/Tokyo", cfg.Booking.Location().String())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "missing cron secret", mutate: func(c *Config) { c.Cron.Secret = "" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Booking.Timezone = "Mars/Base" }, wantErr: true},
		{name: "window reversed", mutate: func(c *Config) { c.Booking.WindowEnd = "2026-01-01" }, wantErr: true},
		{name: "zero base rate", mutate: func(c *Config) { c.Pricing.BaseRate = 0 }, wantErr: true},
		{
			name: "bad season",
			mutate: func(c *Config) {
				c.Pricing.HighSeasons = []SeasonWindow{{Start: "13-01", End: "12-31"}}
			},
			wantErr: true,
		},
		{
			name: "duplicate meal plan",
			mutate: func(c *Config) {
				c.MealPlans = []MealPlanConfig{{ID: "bbq", Price: 1}, {ID: "bbq", Price: 2}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
