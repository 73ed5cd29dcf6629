package booking

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a rentable unit.
type Kind string

const (
	KindSportsField Kind = "sports_field"
	KindCampsite    Kind = "campsite"
	KindKiosk       Kind = "kiosk"
	KindHall        Kind = "hall"
	KindOther       Kind = "other"
)

// Capability describes how a unit kind is booked.
type Capability int

const (
	// CapabilityUntracked units are rented without a time grid and never conflict.
	CapabilityUntracked Capability = iota
	// CapabilityHalfHourGrid units track occupancy in half-hour slots.
	CapabilityHalfHourGrid
)

var kindCapabilities = map[Kind]Capability{
	KindSportsField: CapabilityHalfHourGrid,
	KindCampsite:    CapabilityHalfHourGrid,
	KindKiosk:       CapabilityUntracked,
	KindHall:        CapabilityUntracked,
	KindOther:       CapabilityUntracked,
}

// ParseKind validates a configured unit kind.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := kindCapabilities[kind]; !ok {
		return "", fmt.Errorf("unknown unit kind %q", raw)
	}
	return kind, nil
}

// Capability returns the booking capability of the kind.
func (k Kind) Capability() Capability {
	return kindCapabilities[k]
}

// Unit is a rentable facility.
type Unit struct {
	ID   int64
	Name string
	Kind Kind
}

// ScheduleTracked reports whether the unit participates in conflict checks.
func (u Unit) ScheduleTracked() bool {
	return u.Kind.Capability() == CapabilityHalfHourGrid
}

// Catalog is the static set of units keyed by stable identifier.
type Catalog struct {
	units map[int64]Unit
}

// NewCatalog builds a catalog, rejecting non-positive or duplicate ids.
func NewCatalog(units ...Unit) (Catalog, error) {
	catalog := Catalog{units: make(map[int64]Unit, len(units))}
	for _, unit := range units {
		if unit.ID <= 0 {
			return Catalog{}, fmt.Errorf("unit %q: id must be a positive integer", unit.Name)
		}
		if _, ok := kindCapabilities[unit.Kind]; !ok {
			return Catalog{}, fmt.Errorf("unit %d: unknown kind %q", unit.ID, unit.Kind)
		}
		if _, dup := catalog.units[unit.ID]; dup {
			return Catalog{}, fmt.Errorf("unit %d: duplicate id", unit.ID)
		}
		catalog.units[unit.ID] = unit
	}
	return catalog, nil
}

// Lookup returns the unit with the given id.
func (c Catalog) Lookup(unitID int64) (Unit, bool) {
	unit, ok := c.units[unitID]
	return unit, ok
}

// ScheduleTracked reports whether unitID resolves to a schedule-tracked unit.
func (c Catalog) ScheduleTracked(unitID int64) bool {
	unit, ok := c.units[unitID]
	return ok && unit.ScheduleTracked()
}

// Units returns all units ordered by id.
func (c Catalog) Units() []Unit {
	units := make([]Unit, 0, len(c.units))
	for _, unit := range c.units {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units
}
