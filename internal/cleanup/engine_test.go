package cleanup

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/archive"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/tenant"
)

type fakeBookings struct {
	pastDue   []booking.Booking
	deleted   []string
	deleteErr map[string]error
}

func (f *fakeBookings) ListPastDuePage(_ context.Context, _, cutoff string, cursor map[string]types.AttributeValue, _ int) (*booking.Page, error) {
	if cursor != nil {
		return &booking.Page{}, nil
	}
	var out []booking.Booking
	for _, b := range f.pastDue {
		if b.StartAt < cutoff {
			out = append(out, b)
		}
	}
	return &booking.Page{Bookings: out}, nil
}

func (f *fakeBookings) Delete(_ context.Context, _, bookingID string) error {
	if err := f.deleteErr[bookingID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, bookingID)
	return nil
}

type fakeArchive struct {
	rows     map[string]archive.ArchivedBooking
	putCalls int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{rows: map[string]archive.ArchivedBooking{}}
}

func (f *fakeArchive) Put(_ context.Context, rec *archive.ArchivedBooking) error {
	f.putCalls++
	if rec.ArchiveKey == "" {
		rec.ArchiveKey = archive.DedupKey(rec.CustomerPhone, rec.ServiceTypeID)
	}
	f.rows[rec.ArchiveKey] = *rec
	return nil
}

func (f *fakeArchive) ListPage(_ context.Context, _ string, cursor map[string]types.AttributeValue, _ int) (*archive.Page, error) {
	if cursor != nil {
		return &archive.Page{}, nil
	}
	keys := make([]string, 0, len(f.rows))
	for k := range f.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	page := &archive.Page{}
	for _, k := range keys {
		page.Records = append(page.Records, f.rows[k])
	}
	return page, nil
}

func (f *fakeArchive) BatchDelete(_ context.Context, _ string, keys []string) (int, error) {
	deleted := 0
	for _, k := range keys {
		if _, ok := f.rows[k]; ok {
			delete(f.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

type fakeSites struct{ tz string }

func (f *fakeSites) Get(context.Context, string) (*tenant.Site, error) {
	return &tenant.Site{SiteID: "s", DisplayName: "Studio", Timezone: f.tz}, nil
}

func day(d int) string {
	return booking.FormatInstant(time.Date(2025, 1, d, 10, 0, 0, 0, time.UTC))
}

func newTestEngine(b *fakeBookings, a *fakeArchive) *Engine {
	return NewEngine(Config{
		Bookings:        b,
		Archives:        a,
		Sites:           &fakeSites{tz: "UTC"},
		PurgeBatchSize:  25,
		DefaultTimezone: "UTC",
	})
}

func TestRunCleanupArchivesAndDeletes(t *testing.T) {
	bookings := &fakeBookings{pastDue: []booking.Booking{
		{SiteID: "s", BookingID: "b1", CustomerPhone: "+97250", ServiceTypeID: "cut", StartAt: day(3), Status: booking.StatusConfirmed},
		{SiteID: "s", BookingID: "b2", CustomerPhone: "+97250", ServiceTypeID: "cut", StartAt: day(5), IsFollowUp: true},
		{SiteID: "s", BookingID: "b3", CustomerPhone: "+97251", ServiceTypeID: "color", StartAt: day(7), Status: booking.StatusAwaitingConfirmation},
	}}
	arch := newFakeArchive()
	engine := newTestEngine(bookings, arch)

	res, err := engine.RunCleanup(context.Background(), "s", "2025-02-01", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scanned != 3 || res.Archived != 2 || res.DeletedActive != 2 || res.SkippedFollowups != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.MinDate != "2025-01-03" || res.MaxDate != "2025-01-07" {
		t.Fatalf("unexpected date range %s..%s", res.MinDate, res.MaxDate)
	}
	if len(bookings.deleted) != 3 {
		t.Fatalf("expected all 3 live rows deleted, got %v", bookings.deleted)
	}
	// Follow-up steps are never archived.
	if len(arch.rows) != 2 {
		t.Fatalf("expected 2 archive rows, got %d", len(arch.rows))
	}
	// Past-due awaiting_confirmation normalizes to expired on archive.
	if got := arch.rows[archive.DedupKey("+97251", "color")].Status; got != booking.StatusExpired {
		t.Fatalf("expected expired status, got %s", got)
	}
}

func TestRunCleanupIdempotentRerun(t *testing.T) {
	bookings := &fakeBookings{pastDue: []booking.Booking{
		{SiteID: "s", BookingID: "b1", CustomerPhone: "+97250", ServiceTypeID: "cut", StartAt: day(3), Status: booking.StatusConfirmed},
	}}
	arch := newFakeArchive()
	engine := newTestEngine(bookings, arch)

	if _, err := engine.RunCleanup(context.Background(), "s", "2025-02-01", false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Same booking scanned again (crash-retry shape): the merge write hits
	// the same dedup key and creates no duplicate.
	if _, err := engine.RunCleanup(context.Background(), "s", "2025-02-01", false); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(arch.rows) != 1 {
		t.Fatalf("expected 1 archive row after rerun, got %d", len(arch.rows))
	}
}

func TestRunCleanupDryRunCommitsNothing(t *testing.T) {
	bookings := &fakeBookings{pastDue: []booking.Booking{
		{SiteID: "s", BookingID: "b1", CustomerPhone: "+97250", StartAt: day(3), Status: booking.StatusConfirmed},
		{SiteID: "s", BookingID: "b2", StartAt: day(4), IsFollowUp: true},
	}}
	arch := newFakeArchive()
	engine := newTestEngine(bookings, arch)

	res, err := engine.RunCleanup(context.Background(), "s", "2025-02-01", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scanned != 2 || res.Archived != 1 || res.SkippedFollowups != 1 {
		t.Fatalf("dry run must still classify, got %+v", res)
	}
	if len(bookings.deleted) != 0 || arch.putCalls != 0 {
		t.Fatal("dry run must not write")
	}
}

func TestRunCleanupCountsPerItemErrors(t *testing.T) {
	bookings := &fakeBookings{
		pastDue: []booking.Booking{
			{SiteID: "s", BookingID: "b1", CustomerPhone: "+97250", StartAt: day(3), Status: booking.StatusConfirmed},
			{SiteID: "s", BookingID: "b2", CustomerPhone: "+97251", StartAt: day(4), Status: booking.StatusConfirmed},
		},
		deleteErr: map[string]error{"b1": errors.New("gone mid-run")},
	}
	engine := newTestEngine(bookings, newFakeArchive())

	res, err := engine.RunCleanup(context.Background(), "s", "2025-02-01", false)
	if err != nil {
		t.Fatalf("batch must not abort on per-item failure: %v", err)
	}
	if res.Errors != 1 {
		t.Fatalf("expected 1 error counted, got %+v", res)
	}
	if len(bookings.deleted) != 1 || bookings.deleted[0] != "b2" {
		t.Fatalf("expected b2 still processed, got %v", bookings.deleted)
	}
}

func TestRunCleanupRejectsBadCutoff(t *testing.T) {
	engine := newTestEngine(&fakeBookings{}, newFakeArchive())
	if _, err := engine.RunCleanup(context.Background(), "s", "01/02/2025", false); err == nil {
		t.Fatal("expected invalid cutoff date to error")
	}
}
