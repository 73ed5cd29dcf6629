// internal/api/units/handlers.go
package units

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/bumdes/internal/api/apiutil"
	"github.com/codr1/bumdes/internal/booking"
	"github.com/codr1/bumdes/internal/contact"
	appdb "github.com/codr1/bumdes/internal/db"
	dbgen "github.com/codr1/bumdes/internal/db/generated"
	"github.com/codr1/bumdes/internal/reservation"
)

const unitsQueryTimeout = 5 * time.Second

// Deps are the collaborators the handlers need. Opens and Closes bound the
// day grid as offsets from midnight.
type Deps struct {
	DB      *appdb.DB
	Service *reservation.Service
	Phones  contact.Normalizer
	Opens   time.Duration
	Closes  time.Duration
}

var (
	deps     *Deps
	queries  *dbgen.Queries
	depsOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	if d.DB == nil || d.Service == nil {
		return
	}
	depsOnce.Do(func() {
		deps = &d
		queries = d.DB.Queries
	})
}

type unitResponse struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Kind            booking.Kind `json:"kind"`
	ScheduleTracked bool         `json:"schedule_tracked"`
}

type slotResponse struct {
	Start string `json:"start"`
	Free  bool   `json:"free"`
}

type daySlotsResponse struct {
	UnitID          int64          `json:"unit_id"`
	Date            string         `json:"date"`
	ScheduleTracked bool           `json:"schedule_tracked"`
	Occupied        []string       `json:"occupied"`
	Slots           []slotResponse `json:"slots"`
}

type availabilityResponse struct {
	UnitID int64     `json:"unit_id"`
	Start  time.Time `json:"start"`
	Free   bool      `json:"free"`
}

type bookingsResponse struct {
	UnitID       int64                     `json:"unit_id"`
	Mode         booking.Mode              `json:"mode"`
	Reservations []apiutil.ReservationView `json:"reservations"`
}

// GET /api/v1/units
func HandleUnitsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Unit handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	catalog := d.Service.Engine(r.Context()).Catalog()
	units := catalog.Units()
	resp := make([]unitResponse, len(units))
	for i, unit := range units {
		resp[i] = unitResponse{
			ID:              unit.ID,
			Name:            unit.Name,
			Kind:            unit.Kind,
			ScheduleTracked: unit.ScheduleTracked(),
		}
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write units response")
	}
}

// GET /api/v1/units/{id}/slots?date=YYYY-MM-DD
func HandleUnitSlots(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d, unit, ok := resolveUnit(w, r)
	if !ok {
		return
	}
	engine := d.Service.Engine(r.Context())
	loc := engine.Location()

	day := booking.StartOfDay(engine.Now(), loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, ok := booking.ParseDay(raw, loc)
		if !ok {
			http.Error(w, apiutil.FieldError{Field: "date", Reason: "must be YYYY-MM-DD"}.Error(), http.StatusBadRequest)
			return
		}
		day = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), unitsQueryTimeout)
	defer cancel()

	// Timestamps late on the previous day can round forward onto this one.
	records, err := d.Service.SnapshotDays(ctx, unit.ID, day.AddDate(0, 0, -1), day)
	if err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to load reservations")
		http.Error(w, "Failed to load reservations", http.StatusInternalServerError)
		return
	}
	reservations := reservation.Reservations(records)

	occupied := engine.OccupiedSlotsForDay(day, unit.ID, reservations).Sorted()
	resp := daySlotsResponse{
		UnitID:          unit.ID,
		Date:            day.Format(booking.DateLayout),
		ScheduleTracked: unit.ScheduleTracked(),
		Occupied:        make([]string, len(occupied)),
	}
	for i, slot := range occupied {
		resp.Occupied[i] = slot.In(loc).Format(booking.ClockLayout)
	}
	for _, cell := range engine.DayGrid(day, unit.ID, reservations, d.Opens, d.Closes) {
		resp.Slots = append(resp.Slots, slotResponse{
			Start: cell.Start.Format(booking.ClockLayout),
			Free:  cell.Free,
		})
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to write slots response")
	}
}

// GET /api/v1/units/{id}/availability?start=...
func HandleUnitAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d, unit, ok := resolveUnit(w, r)
	if !ok {
		return
	}
	engine := d.Service.Engine(r.Context())

	candidate, err := apiutil.ParseTimestampField(r.URL.Query().Get("start"), "start", engine.Location())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), unitsQueryTimeout)
	defer cancel()

	records, err := d.Service.SnapshotDays(ctx, unit.ID, candidate.AddDate(0, 0, -1), candidate)
	if err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to load reservations")
		http.Error(w, "Failed to load reservations", http.StatusInternalServerError)
		return
	}

	resp := availabilityResponse{
		UnitID: unit.ID,
		Start:  candidate,
		Free:   engine.IsSlotFree(candidate, unit.ID, reservation.Reservations(records)),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to write availability response")
	}
}

// GET /api/v1/units/{id}/bookings?mode=day|month
func HandleUnitBookings(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if !apiutil.RequireOperator(w, r) {
		return
	}
	d, unit, ok := resolveUnit(w, r)
	if !ok {
		return
	}

	mode, err := booking.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, apiutil.FieldError{Field: "mode", Reason: "must be day or month"}.Error(), http.StatusBadRequest)
		return
	}

	engine := d.Service.Engine(r.Context())
	loc := engine.Location()
	today := booking.StartOfDay(engine.Now(), loc)
	from, to := today, today
	if mode == booking.ModeMonth {
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 1, -1)
	}

	ctx, cancel := context.WithTimeout(r.Context(), unitsQueryTimeout)
	defer cancel()

	records, err := d.Service.SnapshotDays(ctx, unit.ID, from, to)
	if err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to load reservations")
		http.Error(w, "Failed to load reservations", http.StatusInternalServerError)
		return
	}

	byID := make(map[int64]reservation.Record, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}
	listed := engine.ListBookingsForUnit(reservation.Reservations(records), unit.ID, mode)
	ordered := make([]reservation.Record, len(listed))
	for i, booked := range listed {
		ordered[i] = byID[booked.ID]
	}
	resp := bookingsResponse{
		UnitID:       unit.ID,
		Mode:         mode,
		Reservations: apiutil.NewReservationViews(ordered, d.Phones, loc),
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to write bookings response")
	}
}

func resolveUnit(w http.ResponseWriter, r *http.Request) (*Deps, booking.Unit, bool) {
	d := loadDeps()
	if d == nil {
		log.Ctx(r.Context()).Error().Msg("Unit handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, booking.Unit{}, false
	}
	unitID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid unit ID", http.StatusBadRequest)
		return nil, booking.Unit{}, false
	}
	unit, ok := d.Service.Engine(r.Context()).Catalog().Lookup(unitID)
	if !ok {
		http.Error(w, "Unit not found", http.StatusNotFound)
		return nil, booking.Unit{}, false
	}
	return d, unit, true
}

func loadDeps() *Deps {
	return deps
}

func loadQueries() *dbgen.Queries {
	return queries
}
