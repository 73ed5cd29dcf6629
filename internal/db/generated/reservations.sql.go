package dbgen

import (
	"context"
	"database/sql"
)

const reservationColumns = `id, tenant_name, tenant_phone, unit_id, tariff_id, duration_units, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (Reservation, error) {
	var i Reservation
	err := row.Scan(
		&i.ID,
		&i.TenantName,
		&i.TenantPhone,
		&i.UnitID,
		&i.TariffID,
		&i.DurationUnits,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectReservations(rows *sql.Rows) ([]Reservation, error) {
	defer rows.Close()
	var items []Reservation
	for rows.Next() {
		i, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReservation = `
INSERT INTO reservations (
    tenant_name, tenant_phone, unit_id, tariff_id, duration_units, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + reservationColumns

type CreateReservationParams struct {
	TenantName    string
	TenantPhone   sql.NullString
	UnitID        int64
	TariffID      sql.NullInt64
	DurationUnits sql.NullString
	CreatedAt     sql.NullString
	UpdatedAt     sql.NullString
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	row := q.db.QueryRowContext(ctx, createReservation,
		arg.TenantName,
		arg.TenantPhone,
		arg.UnitID,
		arg.TariffID,
		arg.DurationUnits,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanReservation(row)
}

const getReservation = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`

func (q *Queries) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	row := q.db.QueryRowContext(ctx, getReservation, id)
	return scanReservation(row)
}

const listReservations = `SELECT ` + reservationColumns + ` FROM reservations ORDER BY id`

func (q *Queries) ListReservations(ctx context.Context) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, listReservations)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// Matches on the date prefix of either timestamp so rows stored with a
// different separator or an unparsable updated_at are still returned.
const listReservationsForUnitBetween = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE unit_id = ?
  AND id != ?
  AND (
    substr(updated_at, 1, 10) BETWEEN ? AND ?
    OR substr(created_at, 1, 10) BETWEEN ? AND ?
  )
ORDER BY id`

type ListReservationsForUnitBetweenParams struct {
	UnitID    int64
	ExcludeID int64
	FromDate  string
	ToDate    string
}

func (q *Queries) ListReservationsForUnitBetween(ctx context.Context, arg ListReservationsForUnitBetweenParams) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsForUnitBetween,
		arg.UnitID,
		arg.ExcludeID,
		arg.FromDate,
		arg.ToDate,
		arg.FromDate,
		arg.ToDate,
	)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

const updateReservationSchedule = `
UPDATE reservations
SET updated_at = ?,
    duration_units = ?,
    tariff_id = ?
WHERE id = ?
RETURNING ` + reservationColumns

type UpdateReservationScheduleParams struct {
	UpdatedAt     sql.NullString
	DurationUnits sql.NullString
	TariffID      sql.NullInt64
	ID            int64
}

func (q *Queries) UpdateReservationSchedule(ctx context.Context, arg UpdateReservationScheduleParams) (Reservation, error) {
	row := q.db.QueryRowContext(ctx, updateReservationSchedule,
		arg.UpdatedAt,
		arg.DurationUnits,
		arg.TariffID,
		arg.ID,
	)
	return scanReservation(row)
}

const deleteReservation = `DELETE FROM reservations WHERE id = ?`

func (q *Queries) DeleteReservation(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
