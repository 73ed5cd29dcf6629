package booking

import "time"

// Reservation is the read-side view of a stored booking. Zero timestamps mean
// the stored value was absent or could not be parsed.
type Reservation struct {
	ID            int64
	TenantName    string
	UnitID        int64
	TariffID      int64
	DurationUnits string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReferenceTime returns UpdatedAt, falling back to CreatedAt.
func (r Reservation) ReferenceTime() (time.Time, bool) {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt, true
	}
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt, true
	}
	return time.Time{}, false
}

// DurationHours returns the occupancy length in hours, never less than one.
func (r Reservation) DurationHours() float64 {
	return ParseDurationHours(r.DurationUnits)
}

// Window is the derived [Start, End) interval a reservation occupies.
type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeWindow derives the booking window of r. It reports false when r has
// no reference timestamp.
func ComputeWindow(r Reservation) (Window, bool) {
	ref, ok := r.ReferenceTime()
	if !ok {
		return Window{}, false
	}
	start := RoundToSlot(ref)
	return Window{
		Start: start,
		End:   start.Add(HoursDuration(r.DurationHours())),
	}, true
}

// Slots returns every half-hour marker the window covers, starting at the
// truncated start and stopping before End.
func (w Window) Slots() []time.Time {
	var slots []time.Time
	for t := TruncateToSlot(w.Start); t.Before(w.End); t = t.Add(SlotDuration) {
		slots = append(slots, t)
	}
	return slots
}

// Duration is End minus Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
