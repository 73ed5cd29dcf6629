// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/bumdes/internal/api/apiutil"
	"github.com/codr1/bumdes/internal/contact"
	"github.com/codr1/bumdes/internal/ratelimit"
	"github.com/codr1/bumdes/internal/reservation"
)

const (
	reservationQueryTimeout = 5 * time.Second
	maxTenantNameLength     = 120
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Service    *reservation.Service
	Limiter    ratelimit.ReservationLimiter
	Phones     contact.Normalizer
	TrustProxy bool
}

var (
	deps     *Deps
	depsOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	if d.Service == nil {
		return
	}
	depsOnce.Do(func() {
		deps = &d
	})
}

type reservationRequest struct {
	TenantName    string  `json:"tenant_name"`
	TenantPhone   string  `json:"tenant_phone"`
	UnitID        int64   `json:"unit_id"`
	TariffID      int64   `json:"tariff_id"`
	Start         string  `json:"start"`
	DurationHours float64 `json:"duration_hours"`
}

type conflictResponse struct {
	Error     string      `json:"error"`
	UnitID    int64       `json:"unit_id"`
	Conflicts []time.Time `json:"conflicts"`
}

// POST /api/v1/reservations
func HandleReservationCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeReservationRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loc := d.Service.Engine(r.Context()).Location()
	input, err := validateCreate(req, d.Phones, loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ip := ratelimit.GetClientIP(r, d.TrustProxy)
	if d.Limiter != nil {
		if result := d.Limiter.AcquireReservation(r.Context(), input.TenantPhone, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), input.TenantPhone, ip, result)
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Round(time.Second).Seconds())))
			http.Error(w, "Too many reservation requests, please try again later", http.StatusTooManyRequests)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	created, err := d.Service.Reserve(ctx, input)
	if err != nil {
		// Only stored reservations count against the limits
		if d.Limiter != nil {
			d.Limiter.ReleaseReservation(r.Context(), input.TenantPhone, ip)
		}
		writeServiceError(w, r, err, "Failed to create reservation")
		return
	}

	logger.Info().
		Int64("reservation_id", created.ID).
		Int64("unit_id", created.UnitID).
		Str("tenant_phone", ratelimit.SanitizeIdentifier(created.TenantPhone)).
		Msg("Reservation created")

	if err := apiutil.WriteJSON(w, http.StatusCreated, apiutil.NewReservationView(created, d.Phones, loc)); err != nil {
		logger.Error().Err(err).Int64("reservation_id", created.ID).Msg("Failed to write reservation response")
	}
}

// GET /api/v1/reservations/{id}
func HandleReservationGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !apiutil.RequireOperator(w, r) {
		return
	}

	reservationID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid reservation ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	record, err := d.Service.Get(ctx, reservationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch reservation")
		return
	}

	loc := d.Service.Engine(r.Context()).Location()
	if err := apiutil.WriteJSON(w, http.StatusOK, apiutil.NewReservationView(record, d.Phones, loc)); err != nil {
		logger.Error().Err(err).Int64("reservation_id", reservationID).Msg("Failed to write reservation response")
	}
}

// PUT /api/v1/reservations/{id}
func HandleReservationUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !apiutil.RequireOperator(w, r) {
		return
	}

	reservationID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid reservation ID", http.StatusBadRequest)
		return
	}

	req, err := decodeReservationRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loc := d.Service.Engine(r.Context()).Location()
	input, err := validateReschedule(req, loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	updated, err := d.Service.Reschedule(ctx, reservationID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update reservation")
		return
	}

	logger.Info().Int64("reservation_id", updated.ID).Msg("Reservation rescheduled")
	if err := apiutil.WriteJSON(w, http.StatusOK, apiutil.NewReservationView(updated, d.Phones, loc)); err != nil {
		logger.Error().Err(err).Int64("reservation_id", reservationID).Msg("Failed to write reservation response")
	}
}

// DELETE /api/v1/reservations/{id}
func HandleReservationDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !apiutil.RequireOperator(w, r) {
		return
	}

	reservationID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid reservation ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	if err := d.Service.Cancel(ctx, reservationID); err != nil {
		writeServiceError(w, r, err, "Failed to delete reservation")
		return
	}

	logger.Info().Int64("reservation_id", reservationID).Msg("Reservation cancelled")
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logger := log.Ctx(r.Context())

	var conflict reservation.ConflictError
	switch {
	case errors.As(err, &conflict):
		logger.Info().Int64("unit_id", conflict.UnitID).Int("slots", len(conflict.Slots)).Msg("Reservation rejected: slots taken")
		if err := apiutil.WriteJSON(w, http.StatusConflict, conflictResponse{
			Error:     "Requested time overlaps an existing booking",
			UnitID:    conflict.UnitID,
			Conflicts: conflict.Slots,
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to write conflict response")
		}
	case errors.Is(err, reservation.ErrNotFound):
		http.Error(w, "Reservation not found", http.StatusNotFound)
	case errors.Is(err, reservation.ErrUnknownUnit):
		http.Error(w, apiutil.FieldError{Field: "unit_id", Reason: "is not a known unit"}.Error(), http.StatusBadRequest)
	case errors.Is(err, reservation.ErrTariffNotFound):
		http.Error(w, apiutil.FieldError{Field: "tariff_id", Reason: "is not a tariff of this unit"}.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error().Err(err).Msg(message)
		http.Error(w, "Request timed out", http.StatusServiceUnavailable)
	default:
		logger.Error().Err(err).Msg(message)
		http.Error(w, message, http.StatusInternalServerError)
	}
}

func decodeReservationRequest(r *http.Request) (reservationRequest, error) {
	var req reservationRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			switch {
			case errors.As(err, &typeErr):
				return req, apiutil.FieldError{Field: typeErr.Field, Reason: "has the wrong type"}
			case errors.As(err, &syntaxErr):
				return req, errors.New("invalid JSON body")
			}
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form data")
	}
	req.TenantName = r.FormValue("tenant_name")
	req.TenantPhone = r.FormValue("tenant_phone")
	req.Start = r.FormValue("start")

	var err error
	if raw := strings.TrimSpace(r.FormValue("unit_id")); raw != "" {
		if req.UnitID, err = apiutil.ParsePositiveInt64Field(raw, "unit_id"); err != nil {
			return req, err
		}
	}
	if raw := strings.TrimSpace(r.FormValue("tariff_id")); raw != "" {
		if req.TariffID, err = apiutil.ParseNonNegativeInt64Field(raw, "tariff_id"); err != nil {
			return req, err
		}
	}
	if req.DurationHours, err = apiutil.ParseOptionalHoursField(r.FormValue("duration_hours"), "duration_hours"); err != nil {
		return req, err
	}
	return req, nil
}

func validateCreate(req reservationRequest, phones contact.Normalizer, loc *time.Location) (reservation.Request, error) {
	name := strings.TrimSpace(req.TenantName)
	if name == "" {
		return reservation.Request{}, apiutil.FieldError{Field: "tenant_name", Reason: "is required"}
	}
	if len(name) > maxTenantNameLength {
		return reservation.Request{}, apiutil.FieldError{Field: "tenant_name", Reason: "is too long"}
	}

	var phone string
	if strings.TrimSpace(req.TenantPhone) != "" {
		normalized, err := phones.Normalize(req.TenantPhone)
		if err != nil {
			return reservation.Request{}, apiutil.FieldError{Field: "tenant_phone", Reason: "must be a valid phone number"}
		}
		phone = normalized
	}

	if req.UnitID <= 0 {
		return reservation.Request{}, apiutil.FieldError{Field: "unit_id", Reason: "must be greater than 0"}
	}

	schedule, err := validateSchedule(req, loc)
	if err != nil {
		return reservation.Request{}, err
	}
	schedule.TenantName = name
	schedule.TenantPhone = phone
	schedule.UnitID = req.UnitID
	return schedule, nil
}

func validateReschedule(req reservationRequest, loc *time.Location) (reservation.Request, error) {
	if req.TenantName != "" || req.TenantPhone != "" || req.UnitID != 0 {
		return reservation.Request{}, errors.New("only start, duration_hours and tariff_id can be changed")
	}
	return validateSchedule(req, loc)
}

func validateSchedule(req reservationRequest, loc *time.Location) (reservation.Request, error) {
	start, err := apiutil.ParseTimestampField(req.Start, "start", loc)
	if err != nil {
		return reservation.Request{}, err
	}
	hours, err := apiutil.ValidateHours(req.DurationHours, "duration_hours")
	if err != nil {
		return reservation.Request{}, err
	}
	if req.TariffID < 0 {
		return reservation.Request{}, apiutil.FieldError{Field: "tariff_id", Reason: "must be 0 or greater"}
	}
	return reservation.Request{
		Start:         start,
		DurationHours: hours,
		TariffID:      req.TariffID,
	}, nil
}

func loadDeps() *Deps {
	return deps
}
