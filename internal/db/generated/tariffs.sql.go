package dbgen

import (
	"context"
)

const createTariff = `
INSERT INTO tariffs (unit_id, name, price_cents, duration_hours)
VALUES (?, ?, ?, ?)
RETURNING id, unit_id, name, price_cents, duration_hours, created_at`

type CreateTariffParams struct {
	UnitID        int64
	Name          string
	PriceCents    int64
	DurationHours int64
}

func (q *Queries) CreateTariff(ctx context.Context, arg CreateTariffParams) (Tariff, error) {
	row := q.db.QueryRowContext(ctx, createTariff,
		arg.UnitID,
		arg.Name,
		arg.PriceCents,
		arg.DurationHours,
	)
	var i Tariff
	err := row.Scan(
		&i.ID,
		&i.UnitID,
		&i.Name,
		&i.PriceCents,
		&i.DurationHours,
		&i.CreatedAt,
	)
	return i, err
}

const getTariff = `
SELECT id, unit_id, name, price_cents, duration_hours, created_at
FROM tariffs
WHERE id = ?`

func (q *Queries) GetTariff(ctx context.Context, id int64) (Tariff, error) {
	row := q.db.QueryRowContext(ctx, getTariff, id)
	var i Tariff
	err := row.Scan(
		&i.ID,
		&i.UnitID,
		&i.Name,
		&i.PriceCents,
		&i.DurationHours,
		&i.CreatedAt,
	)
	return i, err
}

const listTariffsByUnit = `
SELECT id, unit_id, name, price_cents, duration_hours, created_at
FROM tariffs
WHERE unit_id = ?
ORDER BY price_cents, id`

func (q *Queries) ListTariffsByUnit(ctx context.Context, unitID int64) ([]Tariff, error) {
	rows, err := q.db.QueryContext(ctx, listTariffsByUnit, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tariff
	for rows.Next() {
		var i Tariff
		if err := rows.Scan(
			&i.ID,
			&i.UnitID,
			&i.Name,
			&i.PriceCents,
			&i.DurationHours,
			&i.CreatedAt,
		); err != nil {
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

const deleteTariff = `DELETE FROM tariffs WHERE id = ?`

func (q *Queries) DeleteTariff(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTariff, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
