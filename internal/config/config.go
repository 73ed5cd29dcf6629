// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // facility zones load on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/codr1/bumdes/internal/booking"
)

const (
	defaultDailyDigestCron = "0 6 * * *"
	defaultAuditCron       = "0 * * * *"
	defaultOpensAt         = "06:00"
	defaultClosesAt        = "22:00"
	defaultPhoneRegion     = "ID"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type UnitConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

type BookingConfig struct {
	Timezone    string `yaml:"timezone"`
	OpensAt     string `yaml:"opens_at"`
	ClosesAt    string `yaml:"closes_at"`
	PhoneRegion string `yaml:"phone_region"`
}

type AuthConfig struct {
	// bcrypt hashes of operator bearer tokens
	OperatorTokenHashes []string `yaml:"operator_token_hashes"`
}

type RateLimitConfig struct {
	Backend             string        `yaml:"backend"`
	ReservationsPerHour int           `yaml:"reservations_per_hour"`
	TenantCooldown      time.Duration `yaml:"tenant_cooldown"`
	TrustProxy          bool          `yaml:"trust_proxy"`
	RedisAddr           string        `yaml:"redis_addr"`
	RedisDB             int           `yaml:"redis_db"`
	RedisPassword       string        `yaml:"-"` // Loaded from environment
}

type SchedulerConfig struct {
	DailyDigestCron string `yaml:"daily_digest_cron"`
	AuditCron       string `yaml:"audit_cron"`
}

type EmailConfig struct {
	Region           string `yaml:"region"`
	Sender           string `yaml:"sender"`
	OperatorEmail    string `yaml:"operator_email"`
	ReplyTo          string `yaml:"reply_to"`          // Optional
	ConfigurationSet string `yaml:"configuration_set"` // Optional SES configuration set
	AccessKeyID      string `yaml:"-"`                 // Loaded from environment
	SecretAccessKey  string `yaml:"-"`                 // Loaded from environment
}

type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		SecretKey   string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Units     []UnitConfig    `yaml:"units"`
	Booking   BookingConfig   `yaml:"booking"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Email     EmailConfig     `yaml:"email"`
	Tracing   TracingConfig   `yaml:"tracing"`

	Features struct {
		EnableTracing bool `yaml:"enable_tracing"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults, reads secrets from the
// environment and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Load sensitive values from environment
	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.Email.AccessKeyID = os.Getenv("SES_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("SES_SECRET_ACCESS_KEY")
	cfg.RateLimit.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Asia/Jakarta"
	}
	if c.Booking.OpensAt == "" {
		c.Booking.OpensAt = defaultOpensAt
	}
	if c.Booking.ClosesAt == "" {
		c.Booking.ClosesAt = defaultClosesAt
	}
	if c.Booking.PhoneRegion == "" {
		c.Booking.PhoneRegion = defaultPhoneRegion
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.ReservationsPerHour == 0 {
		c.RateLimit.ReservationsPerHour = 10
	}
	if c.RateLimit.TenantCooldown == 0 {
		c.RateLimit.TenantCooldown = time.Minute
	}
	if c.Scheduler.DailyDigestCron == "" {
		c.Scheduler.DailyDigestCron = defaultDailyDigestCron
	}
	if c.Scheduler.AuditCron == "" {
		c.Scheduler.AuditCron = defaultAuditCron
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if len(c.Units) == 0 {
		return fmt.Errorf("at least one unit is required")
	}
	if _, err := c.Catalog(); err != nil {
		return fmt.Errorf("units: %w", err)
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking timezone %q: %w", c.Booking.Timezone, err)
	}
	opens, err := parseClock(c.Booking.OpensAt)
	if err != nil {
		return fmt.Errorf("booking opens_at: %w", err)
	}
	closes, err := parseClock(c.Booking.ClosesAt)
	if err != nil {
		return fmt.Errorf("booking closes_at: %w", err)
	}
	if closes <= opens {
		return fmt.Errorf("booking closes_at must be after opens_at")
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("rate_limit redis_addr is required for redis backend")
		}
	default:
		return fmt.Errorf("unsupported rate limit backend: %s", c.RateLimit.Backend)
	}
	if c.RateLimit.ReservationsPerHour < 0 {
		return fmt.Errorf("rate_limit reservations_per_hour must be 0 or greater")
	}

	for name, expr := range map[string]string{
		"daily_digest_cron": c.Scheduler.DailyDigestCron,
		"audit_cron":        c.Scheduler.AuditCron,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("scheduler %s %q: %w", name, expr, err)
		}
	}

	if c.Features.EnableTracing && c.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing otlp_endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be between 0 and 1")
	}

	return nil
}

// Catalog builds the unit catalog from the configured units.
func (c *Config) Catalog() (booking.Catalog, error) {
	units := make([]booking.Unit, 0, len(c.Units))
	for _, unit := range c.Units {
		kind, err := booking.ParseKind(unit.Kind)
		if err != nil {
			return booking.Catalog{}, fmt.Errorf("unit %d: %w", unit.ID, err)
		}
		units = append(units, booking.Unit{
			ID:   unit.ID,
			Name: strings.TrimSpace(unit.Name),
			Kind: kind,
		})
	}
	return booking.NewCatalog(units...)
}

// Location returns the facility time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// OpeningHours returns the bookable part of a day as offsets from midnight.
func (c *Config) OpeningHours() (time.Duration, time.Duration) {
	opens, _ := parseClock(c.Booking.OpensAt)
	closes, _ := parseClock(c.Booking.ClosesAt)
	return opens, closes
}

// EmailEnabled reports whether SES credentials and addresses are configured.
func (c *Config) EmailEnabled() bool {
	return c.Email.AccessKeyID != "" &&
		c.Email.SecretAccessKey != "" &&
		c.Email.Region != "" &&
		c.Email.Sender != "" &&
		c.Email.OperatorEmail != ""
}

func parseClock(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "24:00" {
		return 24 * time.Hour, nil
	}
	parsed, err := time.Parse(booking.ClockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("must be HH:MM")
	}
	offset := time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute
	if offset%booking.SlotDuration != 0 {
		return 0, fmt.Errorf("must fall on a half-hour boundary")
	}
	return offset, nil
}
