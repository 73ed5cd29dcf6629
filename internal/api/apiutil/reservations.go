package apiutil

import (
	"time"

	"github.com/codr1/bumdes/internal/contact"
	"github.com/codr1/bumdes/internal/reservation"
)

type WindowView struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ReservationView struct {
	ID            int64       `json:"id"`
	TenantName    string      `json:"tenant_name"`
	TenantPhone   string      `json:"tenant_phone,omitempty"`
	WhatsAppURL   string      `json:"whatsapp_url,omitempty"`
	UnitID        int64       `json:"unit_id"`
	TariffID      int64       `json:"tariff_id,omitempty"`
	DurationHours float64     `json:"duration_hours"`
	CreatedAt     *time.Time  `json:"created_at"`
	UpdatedAt     *time.Time  `json:"updated_at"`
	Window        *WindowView `json:"window"`
}

// NewReservationView renders record with times in loc.
func NewReservationView(record reservation.Record, phones contact.Normalizer, loc *time.Location) ReservationView {
	view := ReservationView{
		ID:            record.ID,
		TenantName:    record.TenantName,
		TenantPhone:   record.TenantPhone,
		UnitID:        record.UnitID,
		TariffID:      record.TariffID,
		DurationHours: record.DurationHours(),
		CreatedAt:     optionalTime(record.CreatedAt, loc),
		UpdatedAt:     optionalTime(record.UpdatedAt, loc),
	}
	if record.TenantPhone != "" {
		view.WhatsAppURL = phones.WhatsAppLink(record.TenantPhone)
	}
	if window, ok := record.Window(); ok {
		view.Window = &WindowView{Start: window.Start.In(loc), End: window.End.In(loc)}
	}
	return view
}

func NewReservationViews(records []reservation.Record, phones contact.Normalizer, loc *time.Location) []ReservationView {
	views := make([]ReservationView, len(records))
	for i, record := range records {
		views[i] = NewReservationView(record, phones, loc)
	}
	return views
}

func optionalTime(t time.Time, loc *time.Location) *time.Time {
	if t.IsZero() {
		return nil
	}
	local := t.In(loc)
	return &local
}
