package apiutil

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/bumdes/internal/booking"
)

func ParseNonNegativeInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, FieldError{Field: field, Reason: "must be 0 or greater"}
	}
	return value, nil
}

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// ParseOptionalHoursField parses a duration in hours. Blank means 0.
func ParseOptionalHoursField(raw string, field string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, FieldError{Field: field, Reason: "must be a number"}
	}
	return ValidateHours(value, field)
}

func ValidateHours(value float64, field string) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, FieldError{Field: field, Reason: "must be 0 or greater"}
	}
	if booking.HoursDuration(value) > booking.MaxDuration {
		return 0, FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d", int(booking.MaxDuration/time.Hour))}
	}
	return value, nil
}

// ParseTimestampField parses a timestamp in the facility location.
func ParseTimestampField(raw string, field string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}
	parsed, ok := booking.ParseTimestamp(raw, loc)
	if !ok {
		return time.Time{}, FieldError{Field: field, Reason: "must be a timestamp like 2006-01-02 15:04"}
	}
	return parsed, nil
}

// PathID parses a positive integer path value.
func PathID(r *http.Request, name string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(name), name)
}

// FormatRupiah renders an amount stored in hundredths of a rupiah.
func FormatRupiah(cents int64) string {
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "Rp" + b.String()
}
