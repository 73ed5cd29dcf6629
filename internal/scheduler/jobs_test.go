package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/codr1/bumdes/internal/booking"
	appdb "github.com/codr1/bumdes/internal/db"
	"github.com/codr1/bumdes/internal/email"
	"github.com/codr1/bumdes/internal/reservation"
	"github.com/codr1/bumdes/internal/testutil"
)

// gocron resolves the zone by name, so the tests need a loadable one.
var wib = mustLoadLocation("Asia/Jakarta")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type recordingSender struct {
	recipient string
	subject   string
	body      string
	err       error
}

func (s *recordingSender) Send(_ context.Context, recipient string, msg email.Message) error {
	s.recipient, s.subject, s.body = recipient, msg.Subject, msg.Body
	return s.err
}

func newJobService(t *testing.T) (*reservation.Service, *appdb.DB) {
	t.Helper()
	catalog, err := booking.NewCatalog(
		booking.Unit{ID: 1, Name: "Lapangan Futsal", Kind: booking.KindSportsField},
		booking.Unit{ID: 2, Name: "Bumi Perkemahan", Kind: booking.KindCampsite},
		booking.Unit{ID: 3, Name: "Kios Pasar", Kind: booking.KindKiosk},
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	now := time.Date(2024, 6, 10, 6, 0, 0, 0, wib)
	engine := booking.NewEngine(catalog, booking.WithLocation(wib), booking.WithClock(booking.FixedClock(now)))
	database := testutil.NewTestDB(t)
	return reservation.NewService(database, engine), database
}

func mustReserve(t *testing.T, svc *reservation.Service, unitID int64, tenant string, start time.Time, hours float64) {
	t.Helper()
	if _, err := svc.Reserve(context.Background(), reservation.Request{
		TenantName:    tenant,
		TenantPhone:   "+6281234567890",
		UnitID:        unitID,
		Start:         start,
		DurationHours: hours,
	}); err != nil {
		t.Fatalf("reserve %s: %v", tenant, err)
	}
}

func TestRunDailyDigest(t *testing.T) {
	svc, _ := newJobService(t)
	mustReserve(t, svc, 1, "PKK Desa", time.Date(2024, 6, 10, 10, 0, 0, 0, wib), 2)
	mustReserve(t, svc, 1, "Karang Taruna", time.Date(2024, 6, 10, 19, 0, 0, 0, wib), 1)
	mustReserve(t, svc, 1, "Kemarin", time.Date(2024, 6, 9, 19, 0, 0, 0, wib), 1)
	mustReserve(t, svc, 3, "Pedagang", time.Date(2024, 6, 10, 7, 0, 0, 0, wib), 8)

	sender := &recordingSender{}
	digest, err := RunDailyDigest(context.Background(), svc, DigestConfig{
		FacilityName: "BUMDes Sukamaju",
		Recipient:    "operator@desa.id",
		Sender:       sender,
	})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	if len(digest.Units) != 2 {
		t.Fatalf("digest covers %d units, want the 2 tracked ones", len(digest.Units))
	}
	field := digest.Units[0]
	if field.UnitName != "Lapangan Futsal" || len(field.Entries) != 2 {
		t.Fatalf("field digest = %+v", field)
	}
	if field.Entries[0].TenantName != "Karang Taruna" || !field.Entries[1].HasWindow {
		t.Fatalf("entries = %+v", field.Entries)
	}
	if len(digest.Units[1].Entries) != 0 {
		t.Fatalf("campsite entries = %+v", digest.Units[1].Entries)
	}

	if sender.recipient != "operator@desa.id" || !strings.Contains(sender.subject, "2 booking(s)") {
		t.Fatalf("sent %q %q", sender.recipient, sender.subject)
	}
	if !strings.Contains(sender.body, "10:00-12:00  PKK Desa") {
		t.Fatalf("body:\n%s", sender.body)
	}
}

func TestRunDailyDigest_SenderFailure(t *testing.T) {
	svc, _ := newJobService(t)

	sender := &recordingSender{err: errors.New("ses down")}
	if _, err := RunDailyDigest(context.Background(), svc, DigestConfig{Recipient: "operator@desa.id", Sender: sender}); err == nil {
		t.Fatal("expected send error")
	}

	if _, err := RunDailyDigest(context.Background(), svc, DigestConfig{}); err != nil {
		t.Fatalf("digest without sender: %v", err)
	}
}

func TestRunReservationAudit(t *testing.T) {
	svc, database := newJobService(t)
	mustReserve(t, svc, 1, "PKK Desa", time.Date(2024, 6, 10, 10, 0, 0, 0, wib), 2)

	for _, row := range []struct{ created, updated any }{
		{nil, nil},
		{"2024-06-10 garbage", "not a time"},
		{"2024-06-10 08:00:00", nil},
	} {
		if _, err := database.Exec(
			`INSERT INTO reservations (tenant_name, unit_id, duration_units, created_at, updated_at) VALUES ('legacy', 1, '1', ?, ?)`,
			row.created, row.updated,
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	skipped, err := RunReservationAudit(context.Background(), svc)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
}

func TestSchedulerRegistration(t *testing.T) {
	if err := Init(wib); err != nil {
		t.Fatalf("init: %v", err)
	}
	svc, _ := newJobService(t)
	noop := func(context.Context) error { return nil }

	if err := AddJob(" ", "0 * * * *", noop); !errors.Is(err, ErrEmptyJobName) {
		t.Fatalf("blank name err = %v", err)
	}
	if err := AddJob("noop", "", noop); !errors.Is(err, ErrEmptyCronExpr) {
		t.Fatalf("blank cron err = %v", err)
	}
	if err := RegisterAuditJob(svc, "0 * * * *"); err != nil {
		t.Fatalf("register audit: %v", err)
	}
	if err := RegisterAuditJob(svc, "30 * * * *"); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("duplicate audit err = %v", err)
	}
	if err := RegisterDailyDigestJob(svc, "not a cron", DigestConfig{}); err == nil {
		t.Fatal("expected invalid cron to fail")
	}
	if err := RegisterDailyDigestJob(nil, "0 6 * * *", DigestConfig{}); err == nil {
		t.Fatal("expected missing service to fail")
	}

	instance, err := ServiceInstance()
	if err != nil {
		t.Fatalf("instance: %v", err)
	}
	jobs := instance.Jobs()
	if len(jobs) != 1 || jobs[0].Name != auditJobName || jobs[0].Cron != "0 * * * *" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name    string
		loc     *time.Location
		wantErr bool
	}{
		{"named zone", wib, false},
		{"utc", time.UTC, false},
		{"fixed zone", time.FixedZone("WIB", 7*60*60), true},
		{"nil", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateLocation(tt.loc); (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLocation() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := newService(time.FixedZone("WIB", 7*60*60), time.Second); err == nil {
		t.Fatal("scheduler should refuse a fixed zone")
	}
}

func TestService_RunNow(t *testing.T) {
	svc, err := newService(wib, time.Second)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })

	ran := make(chan bool, 1)
	if err := svc.AddJob("yearly", "0 0 1 1 *", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		ran <- hasDeadline
		return nil
	}); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if err := svc.RunNow("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("unknown job err = %v", err)
	}

	svc.Start()
	if err := svc.RunNow("yearly"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	select {
	case hasDeadline := <-ran:
		if !hasDeadline {
			t.Fatal("job context should carry the job timeout")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestRunDailyDigest_OffsetTimestamp(t *testing.T) {
	svc, database := newJobService(t)

	// 2024-06-10 03:00 WIB stored in UTC, so its date prefix is the 9th
	if _, err := database.Exec(
		`INSERT INTO reservations (tenant_name, unit_id, duration_units, created_at, updated_at) VALUES ('Ronda Malam', 1, '2', ?, ?)`,
		"2024-06-09T20:00:00Z", "2024-06-09T20:00:00Z",
	); err != nil {
		t.Fatalf("insert: %v", err)
	}

	digest, err := RunDailyDigest(context.Background(), svc, DigestConfig{})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	field := digest.Units[0]
	if len(field.Entries) != 1 || field.Entries[0].TenantName != "Ronda Malam" {
		t.Fatalf("field digest = %+v", field)
	}
	if got := field.Entries[0].Start.Format("15:04"); got != "03:00" {
		t.Fatalf("start = %s, want 03:00", got)
	}
}
