// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/bumdes/internal/api/authz"
	"github.com/codr1/bumdes/internal/api/reservations"
	"github.com/codr1/bumdes/internal/api/units"
	"github.com/codr1/bumdes/internal/booking"
	"github.com/codr1/bumdes/internal/config"
	"github.com/codr1/bumdes/internal/contact"
	"github.com/codr1/bumdes/internal/db"
	"github.com/codr1/bumdes/internal/email"
	"github.com/codr1/bumdes/internal/obs"
	"github.com/codr1/bumdes/internal/ratelimit"
	"github.com/codr1/bumdes/internal/reservation"
	"github.com/codr1/bumdes/internal/scheduler"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func setupLogger(environment string, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.App.Port = getEnvAsInt("PORT", cfg.App.Port)
	cfg.App.Environment = getEnv("ENVIRONMENT", cfg.App.Environment)
	return cfg, nil
}

func newLimiter(ctx context.Context, cfg *config.Config) ratelimit.ReservationLimiter {
	limits := &ratelimit.Config{
		TenantCooldown: cfg.RateLimit.TenantCooldown,
		MaxIPPerHour:   cfg.RateLimit.ReservationsPerHour,
	}
	if cfg.RateLimit.Backend != "redis" {
		return ratelimit.New(limits)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// Checks fail open until Redis is reachable.
		log.Warn().Err(err).Str("addr", cfg.RateLimit.RedisAddr).Msg("Redis unreachable at startup")
	}
	return ratelimit.NewRedis(rdb, limits, "bumdes")
}

func newEmailSender(ctx context.Context, cfg *config.Config) email.Sender {
	if !cfg.EmailEnabled() {
		log.Info().Msg("Email disabled: SES not configured")
		return nil
	}
	client, err := email.NewSESClient(ctx, email.SESConfig{
		AccessKeyID:      cfg.Email.AccessKeyID,
		SecretAccessKey:  cfg.Email.SecretAccessKey,
		Region:           cfg.Email.Region,
		From:             cfg.Email.Sender,
		ReplyTo:          cfg.Email.ReplyTo,
		ConfigurationSet: cfg.Email.ConfigurationSet,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize SES client")
		return nil
	}
	return client
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment, cfg.Features.EnableDebug)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, obs.TracingConfig{
		Enabled:      cfg.Features.EnableTracing,
		ServiceName:  cfg.App.Name,
		Environment:  cfg.App.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid unit catalog")
	}
	loc := cfg.Location()
	engine := booking.NewEngine(catalog, booking.WithLocation(loc))
	service := reservation.NewService(database, engine)

	verifier, err := authz.NewTokenVerifier(cfg.Auth.OperatorTokenHashes)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid operator token configuration")
	}

	limiter := newLimiter(ctx, cfg)
	phones := contact.NewNormalizer(cfg.Booking.PhoneRegion)
	opens, closes := cfg.OpeningHours()

	reservations.InitHandlers(reservations.Deps{
		Service:    service,
		Limiter:    limiter,
		Phones:     phones,
		TrustProxy: cfg.RateLimit.TrustProxy,
	})
	units.InitHandlers(units.Deps{
		DB:      database,
		Service: service,
		Phones:  phones,
		Opens:   opens,
		Closes:  closes,
	})

	if err := scheduler.Init(loc); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := scheduler.RegisterDailyDigestJob(service, cfg.Scheduler.DailyDigestCron, scheduler.DigestConfig{
		FacilityName: cfg.App.Name,
		Recipient:    cfg.Email.OperatorEmail,
		Sender:       newEmailSender(ctx, cfg),
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register daily digest job")
	}
	if err := scheduler.RegisterAuditJob(service, cfg.Scheduler.AuditCron); err != nil {
		log.Fatal().Err(err).Msg("Failed to register reservation audit job")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Create server instance
	server := newServer(cfg, verifier)
	shutdownTimeout := time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("timezone", loc.String()).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
		if err := limiter.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close rate limiter")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to flush traces")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
