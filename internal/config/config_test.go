package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `app:
  name: "BUMDes Sumber Makmur"
  environment: "development"
  port: 8080

database:
  driver: "sqlite"
  filename: "data/bumdes.db"

units:
  - id: 1
    name: "Lapangan Futsal"
    kind: "sports_field"
  - id: 2
    name: "Bumi Perkemahan"
    kind: "campsite"
  - id: 3
    name: "Kios Pasar Desa"
    kind: "kiosk"

booking:
  timezone: "Asia/Jakarta"
  opens_at: "07:00"
  closes_at: "21:30"

rate_limit:
  tenant_cooldown: "2m"
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.RateLimit.Backend != "memory" {
		t.Fatalf("backend = %q", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.TenantCooldown != 2*time.Minute {
		t.Fatalf("cooldown = %s", cfg.RateLimit.TenantCooldown)
	}
	if cfg.Scheduler.DailyDigestCron != defaultDailyDigestCron {
		t.Fatalf("digest cron = %q", cfg.Scheduler.DailyDigestCron)
	}
	if cfg.Booking.PhoneRegion != "ID" {
		t.Fatalf("phone region = %q", cfg.Booking.PhoneRegion)
	}

	opens, closes := cfg.OpeningHours()
	if opens != 7*time.Hour || closes != 21*time.Hour+30*time.Minute {
		t.Fatalf("opening hours = %s-%s", opens, closes)
	}
	if cfg.Location().String() != "Asia/Jakarta" {
		t.Fatalf("location = %s", cfg.Location())
	}
}

func TestParse_Catalog(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if !catalog.ScheduleTracked(1) || !catalog.ScheduleTracked(2) {
		t.Fatal("field and campsite should be schedule-tracked")
	}
	if catalog.ScheduleTracked(3) {
		t.Fatal("kiosk should not be schedule-tracked")
	}
	if len(catalog.Units()) != 3 {
		t.Fatalf("units = %d", len(catalog.Units()))
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{"unknown kind", [2]string{`kind: "kiosk"`, `kind: "pool"`}, "unknown unit kind"},
		{"duplicate unit", [2]string{"id: 3", "id: 2"}, "duplicate id"},
		{"bad timezone", [2]string{`timezone: "Asia/Jakarta"`, `timezone: "Mars/Olympus"`}, "booking timezone"},
		{"off grid opening", [2]string{`opens_at: "07:00"`, `opens_at: "07:15"`}, "half-hour"},
		{"closes before opens", [2]string{`closes_at: "21:30"`, `closes_at: "06:00"`}, "closes_at must be after"},
		{"redis without addr", [2]string{`tenant_cooldown: "2m"`, "backend: \"redis\""}, "redis_addr"},
		{"bad driver", [2]string{`driver: "sqlite"`, `driver: "postgres"`}, "unsupported database driver"},
		{"bad cron", [2]string{`tenant_cooldown: "2m"`, "tenant_cooldown: \"2m\"\nscheduler:\n  audit_cron: \"every hour\""}, "audit_cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Replace(validConfig, tt.replace[0], tt.replace[1], 1)
			_, err := Parse([]byte(body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_ReadsSecretsFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(validConfig), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SES_ACCESS_KEY_ID", "key")
	t.Setenv("SES_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Email.AccessKeyID != "key" || cfg.Email.SecretAccessKey != "secret" {
		t.Fatal("expected SES credentials from environment")
	}
	if cfg.EmailEnabled() {
		t.Fatal("email should stay disabled without sender and region")
	}
}
