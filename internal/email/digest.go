package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codr1/bumdes/internal/booking"
)

const digestSendTimeout = 10 * time.Second

// DigestEntry is one booking in the daily digest.
type DigestEntry struct {
	TenantName  string
	TenantPhone string
	Start       time.Time
	End         time.Time
	HasWindow   bool
}

type UnitDigest struct {
	UnitName string
	Entries  []DigestEntry
}

type Digest struct {
	FacilityName string
	Day          time.Time
	Units        []UnitDigest
}

// Total counts bookings across all units.
func (d Digest) Total() int {
	total := 0
	for _, unit := range d.Units {
		total += len(unit.Entries)
	}
	return total
}

// BuildDailyDigest renders the operator's morning summary.
func BuildDailyDigest(d Digest) Message {
	date := d.Day.Format("Monday, 2 Jan 2006")
	subject := fmt.Sprintf("%s: %d booking(s) for %s", d.FacilityName, d.Total(), date)

	var b strings.Builder
	fmt.Fprintf(&b, "Bookings at %s for %s\n", d.FacilityName, date)
	for _, unit := range d.Units {
		fmt.Fprintf(&b, "\n%s\n", unit.UnitName)
		if len(unit.Entries) == 0 {
			b.WriteString("  no bookings\n")
			continue
		}
		for _, entry := range unit.Entries {
			slot := "time unknown"
			if entry.HasWindow {
				slot = entry.Start.Format(booking.ClockLayout) + "-" + entry.End.Format(booking.ClockLayout)
				if !booking.SameDay(entry.Start, entry.End, entry.Start.Location()) {
					slot += " (+" + entry.End.Format("2 Jan") + ")"
				}
			}
			line := fmt.Sprintf("  %s  %s", slot, entry.TenantName)
			if entry.TenantPhone != "" {
				line += " (" + entry.TenantPhone + ")"
			}
			b.WriteString(line + "\n")
		}
	}
	return Message{Subject: subject, Body: b.String()}
}

// SendDigest delivers msg, bounded by its own timeout.
func SendDigest(ctx context.Context, sender Sender, recipient string, msg Message) error {
	if sender == nil {
		return fmt.Errorf("email sender is not configured")
	}
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	sendCtx, cancel := context.WithTimeout(ctx, digestSendTimeout)
	defer cancel()
	return sender.Send(sendCtx, recipient, msg)
}
