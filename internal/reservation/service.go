// Package reservation persists bookings and enforces that no two bookings of a
// schedule-tracked unit overlap.
package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codr1/bumdes/internal/booking"
	appdb "github.com/codr1/bumdes/internal/db"
	dbgen "github.com/codr1/bumdes/internal/db/generated"
)

// Record is a stored reservation as the API and jobs see it.
type Record struct {
	booking.Reservation
	TenantPhone string
}

// Window returns the derived booking window, if any.
func (r Record) Window() (booking.Window, bool) {
	return booking.ComputeWindow(r.Reservation)
}

// Request describes a booking to create or move. DurationHours of zero means
// the tariff's duration, or one hour without a tariff.
type Request struct {
	TenantName    string
	TenantPhone   string
	UnitID        int64
	TariffID      int64
	Start         time.Time
	DurationHours float64
}

type Service struct {
	db     *appdb.DB
	engine *booking.Engine
}

func NewService(database *appdb.DB, engine *booking.Engine) *Service {
	return &Service{db: database, engine: engine}
}

// Engine returns the availability engine with skipped reservations reported
// to the request logger and span.
func (s *Service) Engine(ctx context.Context) *booking.Engine {
	return s.engine.Scoped(func(r booking.Reservation) {
		log.Ctx(ctx).Warn().
			Int64("reservation_id", r.ID).
			Int64("unit_id", r.UnitID).
			Msg("Skipping reservation without a usable timestamp")
		trace.SpanFromContext(ctx).AddEvent("reservation.skipped", trace.WithAttributes(
			attribute.Int64("reservation.id", r.ID),
			attribute.Int64("unit.id", r.UnitID),
		))
	})
}

// Reserve stores req unless it overlaps an existing booking of the same unit.
// The check and the insert share one write transaction.
func (s *Service) Reserve(ctx context.Context, req Request) (Record, error) {
	if _, ok := s.engine.Catalog().Lookup(req.UnitID); !ok {
		return Record{}, ErrUnknownUnit
	}

	var created dbgen.Reservation
	err := s.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		hours, tariffID, err := resolveDuration(ctx, q, req.UnitID, req.TariffID, req.DurationHours)
		if err != nil {
			return err
		}
		check := booking.Request{UnitID: req.UnitID, Start: req.Start, DurationHours: hours}
		if err := s.ensureFree(ctx, q, check, 0); err != nil {
			return err
		}

		start := nullString(booking.FormatTimestamp(req.Start, s.engine.Location()))
		created, err = q.CreateReservation(ctx, dbgen.CreateReservationParams{
			TenantName:    req.TenantName,
			TenantPhone:   optionalString(req.TenantPhone),
			UnitID:        req.UnitID,
			TariffID:      tariffID,
			DurationUnits: nullString(formatHours(hours)),
			CreatedAt:     start,
			UpdatedAt:     start,
		})
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return s.toRecord(created), nil
}

// Reschedule moves reservation id to req.Start with the same overlap rule,
// ignoring the reservation's own current slots. The unit never changes; a
// zero TariffID keeps the stored tariff.
func (s *Service) Reschedule(ctx context.Context, id int64, req Request) (Record, error) {
	var updated dbgen.Reservation
	err := s.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		existing, err := q.GetReservation(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load reservation: %w", err)
		}

		tariffID := req.TariffID
		if tariffID == 0 && existing.TariffID.Valid {
			tariffID = existing.TariffID.Int64
		}
		hours, tariff, err := resolveDuration(ctx, q, existing.UnitID, tariffID, req.DurationHours)
		if err != nil {
			return err
		}
		check := booking.Request{UnitID: existing.UnitID, Start: req.Start, DurationHours: hours}
		if err := s.ensureFree(ctx, q, check, id); err != nil {
			return err
		}

		updated, err = q.UpdateReservationSchedule(ctx, dbgen.UpdateReservationScheduleParams{
			UpdatedAt:     nullString(booking.FormatTimestamp(req.Start, s.engine.Location())),
			DurationUnits: nullString(formatHours(hours)),
			TariffID:      tariff,
			ID:            id,
		})
		if err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return s.toRecord(updated), nil
}

// Cancel deletes reservation id.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	deleted, err := s.db.Queries.DeleteReservation(ctx, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	row, err := s.db.Queries.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load reservation: %w", err)
	}
	return s.toRecord(row), nil
}

// Snapshot loads unitID's reservations whose stored dates fall between the
// calendar days of from and to, inclusive.
func (s *Service) Snapshot(ctx context.Context, unitID int64, from, to time.Time) ([]Record, error) {
	rows, err := listBetween(ctx, s.db.Queries, unitID, 0, from, to, s.engine.Location())
	if err != nil {
		return nil, err
	}
	return s.toRecords(rows), nil
}

// SnapshotDays loads the candidates for the facility-local days from..to.
// Rows stored as RFC 3339 carry their own offset, so their date prefix can
// sit a day either side of the local date; the range is widened by one day
// on each side and callers filter the result through the engine.
func (s *Service) SnapshotDays(ctx context.Context, unitID int64, from, to time.Time) ([]Record, error) {
	return s.Snapshot(ctx, unitID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
}

// ListAll loads every stored reservation.
func (s *Service) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Queries.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return s.toRecords(rows), nil
}

// Reservations strips records down to what the booking engine consumes.
func Reservations(records []Record) []booking.Reservation {
	out := make([]booking.Reservation, len(records))
	for i, record := range records {
		out[i] = record.Reservation
	}
	return out
}

func (s *Service) ensureFree(ctx context.Context, q *dbgen.Queries, req booking.Request, excludeID int64) error {
	if !s.engine.Catalog().ScheduleTracked(req.UnitID) {
		return nil
	}
	window := req.Window()
	// A stored window can start up to MaxDuration before ours and its timestamp
	// can sit a quarter hour either side of its rounded start.
	from := window.Start.Add(-booking.MaxDuration - time.Hour)
	to := window.End.Add(time.Hour)

	rows, err := listBetween(ctx, q, req.UnitID, excludeID, from, to, s.engine.Location())
	if err != nil {
		return err
	}
	if slots := s.Engine(ctx).Conflicts(req, Reservations(s.toRecords(rows))); len(slots) > 0 {
		return ConflictError{UnitID: req.UnitID, Slots: slots}
	}
	return nil
}

func listBetween(ctx context.Context, q *dbgen.Queries, unitID, excludeID int64, from, to time.Time, loc *time.Location) ([]dbgen.Reservation, error) {
	rows, err := q.ListReservationsForUnitBetween(ctx, dbgen.ListReservationsForUnitBetweenParams{
		UnitID:    unitID,
		ExcludeID: excludeID,
		FromDate:  from.In(loc).Format(booking.DateLayout),
		ToDate:    to.In(loc).Format(booking.DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations for unit %d: %w", unitID, err)
	}
	return rows, nil
}

func resolveDuration(ctx context.Context, q *dbgen.Queries, unitID, tariffID int64, hours float64) (float64, sql.NullInt64, error) {
	if tariffID == 0 {
		return normalizeHours(hours), sql.NullInt64{}, nil
	}
	tariff, err := q.GetTariff(ctx, tariffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.NullInt64{}, ErrTariffNotFound
		}
		return 0, sql.NullInt64{}, fmt.Errorf("load tariff: %w", err)
	}
	if tariff.UnitID != unitID {
		return 0, sql.NullInt64{}, ErrTariffNotFound
	}
	if hours <= 0 {
		hours = float64(tariff.DurationHours)
	}
	return normalizeHours(hours), sql.NullInt64{Int64: tariff.ID, Valid: true}, nil
}

// normalizeHours applies the same floor and cap the booking core applies to
// stored durations.
func normalizeHours(hours float64) float64 {
	return booking.ParseDurationHours(formatHours(hours))
}

func formatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64)
}

func (s *Service) toRecord(row dbgen.Reservation) Record {
	loc := s.engine.Location()
	record := Record{
		Reservation: booking.Reservation{
			ID:            row.ID,
			TenantName:    row.TenantName,
			UnitID:        row.UnitID,
			DurationUnits: row.DurationUnits.String,
		},
		TenantPhone: row.TenantPhone.String,
	}
	if row.TariffID.Valid {
		record.TariffID = row.TariffID.Int64
	}
	if created, ok := booking.ParseTimestamp(row.CreatedAt.String, loc); ok {
		record.CreatedAt = created
	}
	if updated, ok := booking.ParseTimestamp(row.UpdatedAt.String, loc); ok {
		record.UpdatedAt = updated
	}
	return record
}

func (s *Service) toRecords(rows []dbgen.Reservation) []Record {
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = s.toRecord(row)
	}
	return records
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: true}
}

func optionalString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return nullString(value)
}
