package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/bumdes/internal/booking"
	"github.com/codr1/bumdes/internal/email"
	"github.com/codr1/bumdes/internal/reservation"
)

const (
	dailyDigestJobName = "daily_digest"
	auditJobName       = "reservation_audit"
	jobTimeout         = 2 * time.Minute
)

// DigestConfig controls the daily digest. With a nil Sender the digest is
// only logged.
type DigestConfig struct {
	FacilityName string
	Recipient    string
	Sender       email.Sender
}

// RegisterDailyDigestJob registers the morning bookings digest.
func RegisterDailyDigestJob(svc *reservation.Service, cronExpr string, cfg DigestConfig) error {
	if svc == nil {
		return fmt.Errorf("daily digest job requires reservation service")
	}
	return AddJob(dailyDigestJobName, cronExpr, func(ctx context.Context) error {
		_, err := RunDailyDigest(ctx, svc, cfg)
		return err
	})
}

// RegisterAuditJob registers the malformed reservation audit.
func RegisterAuditJob(svc *reservation.Service, cronExpr string) error {
	if svc == nil {
		return fmt.Errorf("audit job requires reservation service")
	}
	return AddJob(auditJobName, cronExpr, func(ctx context.Context) error {
		_, err := RunReservationAudit(ctx, svc)
		return err
	})
}

// RunDailyDigest lists today's bookings of every schedule-tracked unit and,
// when a sender is configured, emails them to the operator.
func RunDailyDigest(ctx context.Context, svc *reservation.Service, cfg DigestConfig) (email.Digest, error) {
	logger := log.Ctx(ctx)
	engine := svc.Engine(ctx)
	loc := engine.Location()
	today := booking.StartOfDay(engine.Now(), loc)

	digest := email.Digest{FacilityName: cfg.FacilityName, Day: today}
	for _, unit := range engine.Catalog().Units() {
		if !unit.ScheduleTracked() {
			continue
		}
		records, err := svc.SnapshotDays(ctx, unit.ID, today, today)
		if err != nil {
			return digest, fmt.Errorf("snapshot unit %d: %w", unit.ID, err)
		}
		byID := make(map[int64]reservation.Record, len(records))
		for _, record := range records {
			byID[record.ID] = record
		}

		unitDigest := email.UnitDigest{UnitName: unit.Name}
		for _, listed := range engine.ListBookingsForUnit(reservation.Reservations(records), unit.ID, booking.ModeDay) {
			record := byID[listed.ID]
			entry := email.DigestEntry{TenantName: record.TenantName, TenantPhone: record.TenantPhone}
			if window, ok := record.Window(); ok {
				entry.Start, entry.End, entry.HasWindow = window.Start.In(loc), window.End.In(loc), true
			}
			unitDigest.Entries = append(unitDigest.Entries, entry)
		}
		logger.Info().
			Int64("unit_id", unit.ID).
			Int("bookings", len(unitDigest.Entries)).
			Msg("Daily digest unit summary")
		digest.Units = append(digest.Units, unitDigest)
	}

	if cfg.Sender == nil {
		logger.Debug().Int("bookings", digest.Total()).Msg("Daily digest email skipped: sender not configured")
		return digest, nil
	}
	if err := email.SendDigest(ctx, cfg.Sender, cfg.Recipient, email.BuildDailyDigest(digest)); err != nil {
		return digest, fmt.Errorf("send digest: %w", err)
	}
	logger.Info().Int("bookings", digest.Total()).Str("recipient", cfg.Recipient).Msg("Daily digest sent")
	return digest, nil
}

// RunReservationAudit counts reservations that have no usable window. Those
// records never block a slot, so each one is logged for follow-up.
func RunReservationAudit(ctx context.Context, svc *reservation.Service) (int, error) {
	logger := log.Ctx(ctx)

	records, err := svc.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reservations: %w", err)
	}

	skipped := 0
	for _, record := range records {
		if _, ok := record.Window(); ok {
			continue
		}
		skipped++
		logger.Warn().
			Int64("reservation_id", record.ID).
			Int64("unit_id", record.UnitID).
			Msg("Reservation has no usable timestamp")
	}

	event := logger.Info()
	if skipped > 0 {
		event = logger.Warn()
	}
	event.Int("reservations", len(records)).Int("skipped", skipped).Msg("Reservation audit completed")
	return skipped, nil
}
