package dbgen

import (
	"database/sql"
)

type Reservation struct {
	ID            int64          `json:"id"`
	TenantName    string         `json:"tenant_name"`
	TenantPhone   sql.NullString `json:"tenant_phone"`
	UnitID        int64          `json:"unit_id"`
	TariffID      sql.NullInt64  `json:"tariff_id"`
	DurationUnits sql.NullString `json:"duration_units"`
	CreatedAt     sql.NullString `json:"created_at"`
	UpdatedAt     sql.NullString `json:"updated_at"`
}

type Tariff struct {
	ID            int64  `json:"id"`
	UnitID        int64  `json:"unit_id"`
	Name          string `json:"name"`
	PriceCents    int64  `json:"price_cents"`
	DurationHours int64  `json:"duration_hours"`
	CreatedAt     string `json:"created_at"`
}
