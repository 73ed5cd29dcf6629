package booking

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// SlotDuration is the scheduling grid granularity.
const SlotDuration = 30 * time.Minute

const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
	ClockLayout     = "15:04"

	// Longest occupancy a single record may claim; larger values count as this.
	maxDurationHours = 24 * 31
)

// MaxDuration bounds how far back a reservation can start and still reach a
// given instant.
const MaxDuration = maxDurationHours * time.Hour

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// RoundToSlot snaps t to the nearest half-hour grid line: minutes below 15
// go to :00, 15 through 44 go to :30, 45 and above roll to the next hour.
func RoundToSlot(t time.Time) time.Time {
	base := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	switch m := t.Minute(); {
	case m < 15:
		return base
	case m < 45:
		return base.Add(SlotDuration)
	default:
		return base.Add(time.Hour)
	}
}

// TruncateToSlot moves t back to the start of its enclosing half-hour slot.
func TruncateToSlot(t time.Time) time.Time {
	minute := t.Minute() - t.Minute()%int(SlotDuration/time.Minute)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// ParseTimestamp parses a stored or user-supplied timestamp. Naive layouts are
// interpreted in loc. The second result is false for blank or unparsable input.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.In(loc), true
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t the way reservation timestamps are stored.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimestampLayout)
}

// ParseDay parses a YYYY-MM-DD calendar day in loc.
func ParseDay(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	parsed, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// ParseDurationHours coerces a stored duration to hours. Non-numeric and
// non-positive values count as one hour.
func ParseDurationHours(raw string) float64 {
	hours, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 1
	}
	return clampHours(hours)
}

func clampHours(hours float64) float64 {
	if math.IsNaN(hours) || hours <= 0 {
		return 1
	}
	return min(max(1, hours), maxDurationHours)
}

// HoursDuration converts fractional hours to a duration.
func HoursDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b share a calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc != nil {
		a, b = a.In(loc), b.In(loc)
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameMonth reports whether a and b share a calendar year and month in loc.
func SameMonth(a, b time.Time, loc *time.Location) bool {
	if loc != nil {
		a, b = a.In(loc), b.In(loc)
	}
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
