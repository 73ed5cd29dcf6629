package booking

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Mode selects the period of a bookings listing.
type Mode string

const (
	ModeDay   Mode = "day"
	ModeMonth Mode = "month"
)

// ParseMode validates a listing mode. Blank input means ModeDay.
func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeDay, nil
	case ModeDay, ModeMonth:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// SkipFunc is called for every reservation excluded from occupancy because
// its window could not be derived.
type SkipFunc func(Reservation)

// Engine answers occupancy questions over a caller-supplied snapshot of
// reservations. It keeps no booking state and is safe for concurrent use.
type Engine struct {
	catalog Catalog
	loc     *time.Location
	clock   Clock
	onSkip  SkipFunc
}

type Option func(*Engine)

// WithLocation sets the facility time zone used for calendar comparisons.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithSkipFunc registers an observer for skipped malformed reservations.
func WithSkipFunc(fn SkipFunc) Option {
	return func(e *Engine) {
		e.onSkip = fn
	}
}

func NewEngine(catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		loc:     time.Local,
		clock:   realClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the unit catalog the engine was built with.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Location returns the facility time zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now returns the engine clock's current time in the facility time zone.
func (e *Engine) Now() time.Time {
	return e.clock.Now().In(e.loc)
}

// Scoped returns a copy of the engine reporting skips to fn as well.
func (e *Engine) Scoped(fn SkipFunc) *Engine {
	scoped := *e
	if prev := e.onSkip; prev != nil && fn != nil {
		scoped.onSkip = func(r Reservation) {
			prev(r)
			fn(r)
		}
	} else if fn != nil {
		scoped.onSkip = fn
	}
	return &scoped
}

// SlotSet is a set of half-hour slot start instants.
type SlotSet struct {
	slots map[int64]time.Time
}

func newSlotSet() SlotSet {
	return SlotSet{slots: make(map[int64]time.Time)}
}

func (s SlotSet) add(t time.Time) {
	s.slots[t.Unix()] = t
}

// Len returns the number of markers.
func (s SlotSet) Len() int {
	return len(s.slots)
}

// Contains reports whether t is a marker in the set.
func (s SlotSet) Contains(t time.Time) bool {
	_, ok := s.slots[t.Unix()]
	return ok
}

// Sorted returns the markers in ascending order.
func (s SlotSet) Sorted() []time.Time {
	out := make([]time.Time, 0, len(s.slots))
	for _, t := range s.slots {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// OccupiedSlotsForDay returns every half-hour marker occupied on day by
// reservations of unitID. Only windows starting on day count; reservations
// without a derivable window are skipped.
func (e *Engine) OccupiedSlotsForDay(day time.Time, unitID int64, reservations []Reservation) SlotSet {
	occupied := newSlotSet()
	if !e.catalog.ScheduleTracked(unitID) {
		return occupied
	}
	for _, window := range e.windowsFor(unitID, reservations) {
		if !SameDay(window.Start, day, e.loc) {
			continue
		}
		for _, slot := range window.Slots() {
			occupied.add(slot.In(e.loc))
		}
	}
	return occupied
}

// IsSlotFree reports whether candidate's time of day is unoccupied on its
// calendar day. Units that are unknown or not schedule-tracked are always free.
func (e *Engine) IsSlotFree(candidate time.Time, unitID int64, reservations []Reservation) bool {
	if !e.catalog.ScheduleTracked(unitID) {
		return true
	}
	candidate = candidate.In(e.loc)
	want := minuteOfDay(candidate)
	for _, slot := range e.OccupiedSlotsForDay(candidate, unitID, reservations).slots {
		if SameDay(slot, candidate, e.loc) && minuteOfDay(slot) == want {
			return false
		}
	}
	return true
}

// Request describes a booking a caller wants to persist.
type Request struct {
	UnitID        int64
	Start         time.Time
	DurationHours float64
}

// Window derives the request's window the same way a stored reservation's
// window is derived.
func (r Request) Window() Window {
	start := RoundToSlot(r.Start)
	return Window{Start: start, End: start.Add(HoursDuration(clampHours(r.DurationHours)))}
}

// Conflicts returns the markers of req's window that overlap any existing
// reservation of the same unit. Windows are compared as intervals, so a
// booking that runs past midnight still blocks the next morning.
func (e *Engine) Conflicts(req Request, reservations []Reservation) []time.Time {
	if !e.catalog.ScheduleTracked(req.UnitID) {
		return nil
	}
	occupied := newSlotSet()
	for _, window := range e.windowsFor(req.UnitID, reservations) {
		for _, slot := range window.Slots() {
			occupied.add(slot)
		}
	}
	var conflicts []time.Time
	for _, slot := range req.Window().Slots() {
		if occupied.Contains(slot) {
			conflicts = append(conflicts, slot.In(e.loc))
		}
	}
	return conflicts
}

// SlotStatus is one cell of a day grid.
type SlotStatus struct {
	Start time.Time
	Free  bool
}

// DayGrid lists every half-hour slot of day between opens and closes
// (offsets from midnight) with its free flag.
func (e *Engine) DayGrid(day time.Time, unitID int64, reservations []Reservation, opens, closes time.Duration) []SlotStatus {
	midnight := StartOfDay(day, e.loc)
	occupied := e.OccupiedSlotsForDay(midnight, unitID, reservations)
	var grid []SlotStatus
	for offset := opens; offset < closes; offset += SlotDuration {
		slot := midnight.Add(offset)
		grid = append(grid, SlotStatus{Start: slot, Free: !occupied.Contains(slot)})
	}
	return grid
}

// ListBookingsForUnit returns unitID's reservations whose reference timestamp
// falls in the current day or month, most recent first.
func (e *Engine) ListBookingsForUnit(reservations []Reservation, unitID int64, mode Mode) []Reservation {
	now := e.Now()
	inPeriod := SameDay
	if mode == ModeMonth {
		inPeriod = SameMonth
	}

	var out []Reservation
	for _, r := range reservations {
		if r.UnitID != unitID {
			continue
		}
		ref, ok := r.ReferenceTime()
		if !ok || !inPeriod(ref, now, e.loc) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].ReferenceTime()
		b, _ := out[j].ReferenceTime()
		if a.Equal(b) {
			return out[i].ID > out[j].ID
		}
		return a.After(b)
	})
	return out
}

func (e *Engine) windowsFor(unitID int64, reservations []Reservation) []Window {
	var windows []Window
	for _, r := range reservations {
		if r.UnitID != unitID {
			continue
		}
		window, ok := ComputeWindow(r)
		if !ok {
			if e.onSkip != nil {
				e.onSkip(r)
			}
			continue
		}
		windows = append(windows, window)
	}
	return windows
}
