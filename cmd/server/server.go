// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/bumdes/internal/api"
	"github.com/codr1/bumdes/internal/api/authz"
	"github.com/codr1/bumdes/internal/api/reservations"
	"github.com/codr1/bumdes/internal/api/units"
	"github.com/codr1/bumdes/internal/config"
)

func newServer(cfg *config.Config, verifier *authz.TokenVerifier) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithOperatorAuth(verifier),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
		api.WithTracing(cfg.App.Name),
	)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Unit routes
	mux.HandleFunc("GET /api/v1/units", units.HandleUnitsList)
	mux.HandleFunc("GET /api/v1/units/{id}/slots", units.HandleUnitSlots)
	mux.HandleFunc("GET /api/v1/units/{id}/availability", units.HandleUnitAvailability)
	mux.HandleFunc("GET /api/v1/units/{id}/bookings", units.HandleUnitBookings)

	// Tariff routes
	mux.HandleFunc("GET /api/v1/units/{id}/tariffs", units.HandleTariffsList)
	mux.HandleFunc("POST /api/v1/units/{id}/tariffs", units.HandleTariffCreate)
	mux.HandleFunc("DELETE /api/v1/tariffs/{id}", units.HandleTariffDelete)

	// Reservation routes
	mux.HandleFunc("POST /api/v1/reservations", reservations.HandleReservationCreate)
	mux.HandleFunc("GET /api/v1/reservations/{id}", reservations.HandleReservationGet)
	mux.HandleFunc("PUT /api/v1/reservations/{id}", reservations.HandleReservationUpdate)
	mux.HandleFunc("DELETE /api/v1/reservations/{id}", reservations.HandleReservationDelete)
}
