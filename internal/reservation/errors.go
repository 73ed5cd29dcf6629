package reservation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("reservation not found")
	ErrUnknownUnit    = errors.New("unknown unit")
	ErrTariffNotFound = errors.New("tariff not found")
)

// ConflictError lists the half-hour slots of a request that are already taken.
type ConflictError struct {
	UnitID int64
	Slots  []time.Time
}

func (e ConflictError) Error() string {
	slots := make([]string, len(e.Slots))
	for i, slot := range e.Slots {
		slots[i] = slot.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("unit %d already booked at %s", e.UnitID, strings.Join(slots, ", "))
}
