package units

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/bumdes/internal/api/apiutil"
	dbgen "github.com/codr1/bumdes/internal/db/generated"
)

const maxTariffNameLength = 80

type tariffRequest struct {
	Name          string `json:"name"`
	PriceCents    int64  `json:"price_cents"`
	DurationHours int64  `json:"duration_hours"`
}

type tariffResponse struct {
	dbgen.Tariff
	PriceLabel string `json:"price_label"`
}

// GET /api/v1/units/{id}/tariffs
func HandleTariffsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	_, unit, ok := resolveUnit(w, r)
	if !ok {
		return
	}
	q := loadQueries()

	ctx, cancel := context.WithTimeout(r.Context(), unitsQueryTimeout)
	defer cancel()

	tariffs, err := q.ListTariffsByUnit(ctx, unit.ID)
	if err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to list tariffs")
		http.Error(w, "Failed to list tariffs", http.StatusInternalServerError)
		return
	}

	resp := make([]tariffResponse, len(tariffs))
	for i, tariff := range tariffs {
		resp[i] = newTariffResponse(tariff)
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to write tariffs response")
	}
}

// POST /api/v1/units/{id}/tariffs
func HandleTariffCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if !apiutil.RequireOperator(w, r) {
		return
	}
	_, unit, ok := resolveUnit(w, r)
	if !ok {
		return
	}
	q := loadQueries()

	req, err := decodeTariffRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateTariff(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), unitsQueryTimeout)
	defer cancel()

	created, err := q.CreateTariff(ctx, dbgen.CreateTariffParams{
		UnitID:        unit.ID,
		Name:          req.Name,
		PriceCents:    req.PriceCents,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		logger.Error().Err(err).Int64("unit_id", unit.ID).Msg("Failed to create tariff")
		http.Error(w, "Failed to create tariff", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("tariff_id", created.ID).Int64("unit_id", unit.ID).Msg("Tariff created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, newTariffResponse(created)); err != nil {
		logger.Error().Err(err).Int64("tariff_id", created.ID).Msg("Failed to write tariff response")
	}
}

// DELETE /api/v1/tariffs/{id}
func HandleTariffDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if !apiutil.RequireOperator(w, r) {
		return
	}
	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	tariffID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid tariff ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), unitsQueryTimeout)
	defer cancel()

	// Reservations keep their rows; the foreign key clears tariff_id.
	deleted, err := q.DeleteTariff(ctx, tariffID)
	if err != nil {
		logger.Error().Err(err).Int64("tariff_id", tariffID).Msg("Failed to delete tariff")
		http.Error(w, "Failed to delete tariff", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		http.Error(w, "Tariff not found", http.StatusNotFound)
		return
	}

	logger.Info().Int64("tariff_id", tariffID).Msg("Tariff deleted")
	w.WriteHeader(http.StatusNoContent)
}

func decodeTariffRequest(r *http.Request) (tariffRequest, error) {
	var req tariffRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form data")
	}
	var err error
	req.Name = r.FormValue("name")
	if req.PriceCents, err = apiutil.ParseNonNegativeInt64Field(r.FormValue("price_cents"), "price_cents"); err != nil {
		return req, err
	}
	if req.DurationHours, err = apiutil.ParsePositiveInt64Field(r.FormValue("duration_hours"), "duration_hours"); err != nil {
		return req, err
	}
	return req, nil
}

func validateTariff(req tariffRequest) error {
	switch {
	case req.Name == "":
		return apiutil.FieldError{Field: "name", Reason: "is required"}
	case len(req.Name) > maxTariffNameLength:
		return apiutil.FieldError{Field: "name", Reason: "is too long"}
	case req.PriceCents < 0:
		return apiutil.FieldError{Field: "price_cents", Reason: "must be 0 or greater"}
	case req.DurationHours < 1:
		return apiutil.FieldError{Field: "duration_hours", Reason: "must be at least 1"}
	}
	if _, err := apiutil.ValidateHours(float64(req.DurationHours), "duration_hours"); err != nil {
		return err
	}
	return nil
}

func newTariffResponse(tariff dbgen.Tariff) tariffResponse {
	return tariffResponse{Tariff: tariff, PriceLabel: apiutil.FormatRupiah(tariff.PriceCents)}
}
