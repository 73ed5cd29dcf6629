package booking

import (
	"testing"
	"time"
)

const (
	fieldID   int64 = 1
	campID    int64 = 2
	kioskID   int64 = 3
	unknownID int64 = 99
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	catalog, err := NewCatalog(
		Unit{ID: fieldID, Name: "Lapangan Futsal", Kind: KindSportsField},
		Unit{ID: campID, Name: "Bumi Perkemahan", Kind: KindCampsite},
		Unit{ID: kioskID, Name: "Kios Pasar", Kind: KindKiosk},
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	opts = append([]Option{WithLocation(time.UTC)}, opts...)
	return NewEngine(catalog, opts...)
}

func clockTimes(slots []time.Time) []string {
	out := make([]string, len(slots))
	for i, slot := range slots {
		out[i] = slot.Format(ClockLayout)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEndToEndScenario(t *testing.T) {
	engine := newTestEngine(t)
	updated, _ := ParseTimestamp("2024-06-10 10:00:00", time.UTC)
	reservations := []Reservation{{ID: 1, UnitID: fieldID, DurationUnits: "2", UpdatedAt: updated}}

	day, _ := ParseDay("2024-06-10", time.UTC)
	occupied := engine.OccupiedSlotsForDay(day, fieldID, reservations)
	want := []string{"10:00", "10:30", "11:00", "11:30"}
	if got := clockTimes(occupied.Sorted()); !equalStrings(got, want) {
		t.Fatalf("occupied = %v, want %v", got, want)
	}

	busy, _ := ParseTimestamp("2024-06-10 10:30", time.UTC)
	if engine.IsSlotFree(busy, fieldID, reservations) {
		t.Fatal("10:30 should be occupied")
	}
	free, _ := ParseTimestamp("2024-06-10 12:00", time.UTC)
	if !engine.IsSlotFree(free, fieldID, reservations) {
		t.Fatal("12:00 should be free")
	}
}

func TestConflictSymmetry(t *testing.T) {
	engine := newTestEngine(t)
	reservations := []Reservation{
		{ID: 1, UnitID: fieldID, DurationUnits: "2", UpdatedAt: at(8, 10)},
		{ID: 2, UnitID: fieldID, DurationUnits: "1", UpdatedAt: at(15, 40)},
		{ID: 3, UnitID: campID, DurationUnits: "3", UpdatedAt: at(12, 0)},
	}

	occupied := engine.OccupiedSlotsForDay(at(0, 0), fieldID, reservations)
	for offset := time.Duration(0); offset < 24*time.Hour; offset += SlotDuration {
		slot := at(0, 0).Add(offset)
		free := engine.IsSlotFree(slot, fieldID, reservations)
		if occupied.Contains(slot) == free {
			t.Fatalf("slot %s: occupied=%v free=%v", slot.Format(ClockLayout), occupied.Contains(slot), free)
		}
	}
	if occupied.Contains(at(12, 0)) {
		t.Fatal("campsite reservation leaked into the sports field")
	}
}

func TestDayIsolation(t *testing.T) {
	engine := newTestEngine(t)
	reservations := []Reservation{
		{ID: 1, UnitID: fieldID, DurationUnits: "4", UpdatedAt: at(22, 0)},
	}

	nextDay := at(0, 0).AddDate(0, 0, 1)
	if got := engine.OccupiedSlotsForDay(nextDay, fieldID, reservations).Len(); got != 0 {
		t.Fatalf("next day has %d markers, want 0", got)
	}
	if !engine.IsSlotFree(nextDay.Add(time.Hour), fieldID, reservations) {
		t.Fatal("01:00 on the next day should be free")
	}
	if got := engine.OccupiedSlotsForDay(at(0, 0), fieldID, reservations).Len(); got != 8 {
		t.Fatalf("start day has %d markers, want 8", got)
	}
	if !engine.IsSlotFree(at(0, 30), fieldID, reservations) {
		t.Fatal("00:30 on the start day should be free")
	}
}

func TestUnscheduledUnitPassthrough(t *testing.T) {
	engine := newTestEngine(t)
	reservations := []Reservation{
		{ID: 1, UnitID: kioskID, DurationUnits: "8", UpdatedAt: at(9, 0)},
		{ID: 2, UnitID: unknownID, DurationUnits: "8", UpdatedAt: at(9, 0)},
	}

	for _, unitID := range []int64{kioskID, unknownID, 0} {
		if !engine.IsSlotFree(at(10, 0), unitID, reservations) {
			t.Fatalf("unit %d should always be free", unitID)
		}
		if got := engine.OccupiedSlotsForDay(at(0, 0), unitID, reservations).Len(); got != 0 {
			t.Fatalf("unit %d: %d markers, want 0", unitID, got)
		}
		if got := engine.Conflicts(Request{UnitID: unitID, Start: at(9, 0), DurationHours: 1}, reservations); len(got) != 0 {
			t.Fatalf("unit %d: conflicts %v", unitID, got)
		}
	}
}

func TestMalformedRecordsFailOpen(t *testing.T) {
	var skipped []int64
	engine := newTestEngine(t, WithSkipFunc(func(r Reservation) {
		skipped = append(skipped, r.ID)
	}))
	reservations := []Reservation{
		{ID: 7, UnitID: fieldID, DurationUnits: "2"},
		{ID: 8, UnitID: fieldID, DurationUnits: "oops", UpdatedAt: at(9, 0)},
	}

	occupied := engine.OccupiedSlotsForDay(at(0, 0), fieldID, reservations)
	if want := []string{"09:00", "09:30"}; !equalStrings(clockTimes(occupied.Sorted()), want) {
		t.Fatalf("occupied = %v, want %v", clockTimes(occupied.Sorted()), want)
	}
	if len(skipped) != 1 || skipped[0] != 7 {
		t.Fatalf("skipped = %v, want [7]", skipped)
	}
}

func TestConflicts(t *testing.T) {
	engine := newTestEngine(t)
	reservations := []Reservation{
		{ID: 1, UnitID: fieldID, DurationUnits: "2", UpdatedAt: at(10, 0)},
		{ID: 2, UnitID: fieldID, DurationUnits: "3", UpdatedAt: at(23, 0)},
	}

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"before", Request{UnitID: fieldID, Start: at(8, 0), DurationHours: 2}, nil},
		{"overlaps tail", Request{UnitID: fieldID, Start: at(11, 0), DurationHours: 2}, []string{"11:00", "11:30"}},
		{"starts earlier and overlaps head", Request{UnitID: fieldID, Start: at(9, 0), DurationHours: 1.5}, []string{"10:00"}},
		{"rounded start", Request{UnitID: fieldID, Start: at(11, 50), DurationHours: 1}, nil},
		{"next morning", Request{UnitID: fieldID, Start: at(0, 0).AddDate(0, 0, 1).Add(30 * time.Minute), DurationHours: 1}, []string{"00:30", "01:00"}},
		{"other unit", Request{UnitID: campID, Start: at(10, 0), DurationHours: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clockTimes(engine.Conflicts(tt.req, reservations))
			if !equalStrings(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Fatalf("conflicts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayGrid(t *testing.T) {
	engine := newTestEngine(t)
	reservations := []Reservation{{ID: 1, UnitID: fieldID, DurationUnits: "1", UpdatedAt: at(7, 0)}}

	grid := engine.DayGrid(at(15, 0), fieldID, reservations, 6*time.Hour, 9*time.Hour)
	if len(grid) != 6 {
		t.Fatalf("grid has %d slots, want 6", len(grid))
	}
	for _, cell := range grid {
		wantFree := cell.Start.Hour() != 7
		if cell.Free != wantFree {
			t.Fatalf("slot %s free=%v, want %v", cell.Start.Format(ClockLayout), cell.Free, wantFree)
		}
	}
}

func TestListBookingsForUnit_DaySortedNewestFirst(t *testing.T) {
	engine := newTestEngine(t, WithClock(FixedClock(at(18, 0))))
	reservations := []Reservation{
		{ID: 1, UnitID: fieldID, UpdatedAt: at(9, 0)},
		{ID: 2, UnitID: fieldID, UpdatedAt: at(14, 0)},
		{ID: 3, UnitID: fieldID, UpdatedAt: at(11, 0)},
		{ID: 4, UnitID: fieldID, UpdatedAt: at(11, 0).AddDate(0, 0, -1)},
		{ID: 5, UnitID: campID, UpdatedAt: at(12, 0)},
		{ID: 6, UnitID: fieldID},
	}

	got := engine.ListBookingsForUnit(reservations, fieldID, ModeDay)
	wantIDs := []int64{2, 3, 1}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d reservations, want %d", len(got), len(wantIDs))
	}
	for i, r := range got {
		if r.ID != wantIDs[i] {
			t.Fatalf("position %d: id %d, want %d", i, r.ID, wantIDs[i])
		}
	}
}

func TestListBookingsForUnit_Month(t *testing.T) {
	engine := newTestEngine(t, WithClock(FixedClock(at(18, 0))))
	reservations := []Reservation{
		{ID: 1, UnitID: fieldID, CreatedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)},
		{ID: 2, UnitID: fieldID, UpdatedAt: time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC)},
		{ID: 3, UnitID: fieldID, UpdatedAt: time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)},
		{ID: 4, UnitID: fieldID, UpdatedAt: time.Date(2023, 6, 15, 8, 0, 0, 0, time.UTC)},
	}

	got := engine.ListBookingsForUnit(reservations, fieldID, ModeMonth)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("unexpected month listing: %+v", got)
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode(""); err != nil || mode != ModeDay {
		t.Fatalf("blank mode: %v %v", mode, err)
	}
	if mode, err := ParseMode("MONTH"); err != nil || mode != ModeMonth {
		t.Fatalf("month mode: %v %v", mode, err)
	}
	if _, err := ParseMode("week"); err == nil {
		t.Fatal("expected error for week")
	}
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog(
		Unit{ID: 1, Name: "A", Kind: KindSportsField},
		Unit{ID: 1, Name: "B", Kind: KindCampsite},
	)
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if _, err := NewCatalog(Unit{ID: 2, Name: "C", Kind: "pool"}); err == nil {
		t.Fatal("expected unknown kind error")
	}
}
