package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	dbgen "github.com/codr1/bumdes/internal/db/generated"
)

func TestWithSQLiteOptions(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data/app.db", "data/app.db?_fk=1&_txlock=immediate&_busy_timeout=5000"},
		{"data/app.db?cache=shared", "data/app.db?cache=shared&_fk=1&_txlock=immediate&_busy_timeout=5000"},
		{"data/app.db?_fk=0&_txlock=deferred", "data/app.db?_fk=0&_txlock=deferred&_busy_timeout=5000"},
	}
	for _, tt := range tests {
		if got := withSQLiteOptions(tt.in); got != tt.want {
			t.Fatalf("withSQLiteOptions(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := database.RunInTx(ctx, func(txdb *DB) error {
		if _, err := txdb.Queries.CreateTariff(ctx, dbgen.CreateTariffParams{
			UnitID:        1,
			Name:          "Sore",
			PriceCents:    150000,
			DurationHours: 2,
		}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}

	tariffs, err := database.Queries.ListTariffsByUnit(ctx, 1)
	if err != nil {
		t.Fatalf("list tariffs: %v", err)
	}
	if len(tariffs) != 0 {
		t.Fatalf("got %d tariffs after rollback", len(tariffs))
	}
}

func TestReservationQueries(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	q := database.Queries

	created, err := q.CreateReservation(ctx, dbgen.CreateReservationParams{
		TenantName:    "Karang Taruna",
		UnitID:        1,
		DurationUnits: sql.NullString{String: "2", Valid: true},
		CreatedAt:     sql.NullString{String: "2024-06-10 10:00:00", Valid: true},
		UpdatedAt:     sql.NullString{String: "2024-06-10 10:00:00", Valid: true},
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	// Legacy row with a T separator and a broken updated_at.
	if _, err := database.ExecContext(ctx,
		`INSERT INTO reservations (tenant_name, unit_id, duration_units, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"Legacy", 1, "x", "2024-06-11T08:00", "garbage",
	); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	rows, err := q.ListReservationsForUnitBetween(ctx, dbgen.ListReservationsForUnitBetweenParams{
		UnitID:   1,
		FromDate: "2024-06-10",
		ToDate:   "2024-06-11",
	})
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	rows, err = q.ListReservationsForUnitBetween(ctx, dbgen.ListReservationsForUnitBetweenParams{
		UnitID:    1,
		ExcludeID: created.ID,
		FromDate:  "2024-06-10",
		ToDate:    "2024-06-10",
	})
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}

	deleted, err := q.DeleteReservation(ctx, created.ID)
	if err != nil || deleted != 1 {
		t.Fatalf("delete: %d %v", deleted, err)
	}
	if _, err := q.GetReservation(ctx, created.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("get after delete: %v", err)
	}
}
