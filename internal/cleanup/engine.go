package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/archive"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/tenant"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

const defaultPageSize = 100

// ErrBadCutoff indicates a cutoff date that is not YYYY-MM-DD.
var ErrBadCutoff = errors.New("cleanup: invalid cutoff date")

type bookingSource interface {
	ListPastDuePage(ctx context.Context, siteID, cutoff string, cursor map[string]types.AttributeValue, limit int) (*booking.Page, error)
	Delete(ctx context.Context, siteID, bookingID string) error
}

type archiveStore interface {
	Put(ctx context.Context, rec *archive.ArchivedBooking) error
	ListPage(ctx context.Context, siteID string, cursor map[string]types.AttributeValue, limit int) (*archive.Page, error)
	BatchDelete(ctx context.Context, siteID string, keys []string) (int, error)
}

type siteSource interface {
	Get(ctx context.Context, siteID string) (*tenant.Site, error)
}

// Engine migrates past-due bookings into the deduplicated archive and
// permanently purges archived rows. Every pass is idempotent per booking, so
// a crashed run resumes safely on the next invocation.
type Engine struct {
	bookings        bookingSource
	archives        archiveStore
	sites           siteSource
	logger          *logging.Logger
	pageSize        int
	purgeBatchSize  int
	defaultTimezone string
	now             func() time.Time
}

// Config wires an Engine.
type Config struct {
	Bookings        bookingSource
	Archives        archiveStore
	Sites           siteSource
	Logger          *logging.Logger
	PurgeBatchSize  int
	DefaultTimezone string
}

// NewEngine builds a cleanup engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Bookings == nil || cfg.Archives == nil {
		panic("cleanup: bookings and archives required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.PurgeBatchSize <= 0 {
		cfg.PurgeBatchSize = 25
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	return &Engine{
		bookings:        cfg.Bookings,
		archives:        cfg.Archives,
		sites:           cfg.Sites,
		logger:          cfg.Logger,
		pageSize:        defaultPageSize,
		purgeBatchSize:  cfg.PurgeBatchSize,
		defaultTimezone: cfg.DefaultTimezone,
		now:             time.Now,
	}
}

// CleanupResult reports one archival scan.
type CleanupResult struct {
	Scanned          int    `json:"scanned"`
	DeletedActive    int    `json:"deletedActive"`
	Archived         int    `json:"archived"`
	SkippedFollowups int    `json:"skippedFollowups"`
	Errors           int    `json:"errors"`
	MinDate          string `json:"minDate,omitempty"`
	MaxDate          string `json:"maxDate,omitempty"`
}

// RunCleanup scans the tenant's bookings starting before the cutoff date
// (YYYY-MM-DD, start of that day in the tenant timezone; empty means today).
// Follow-up steps are deleted outright, real bookings are merged into the
// archive then deleted. dryRun classifies without committing any write.
func (e *Engine) RunCleanup(ctx context.Context, siteID, cutoffDate string, dryRun bool) (*CleanupResult, error) {
	if siteID == "" {
		return nil, errors.New("cleanup: siteID required")
	}
	cutoff, err := e.resolveCutoff(ctx, siteID, cutoffDate)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{}
	var cursor map[string]types.AttributeValue
	for {
		page, err := e.bookings.ListPastDuePage(ctx, siteID, cutoff, cursor, e.pageSize)
		if err != nil {
			return result, err
		}
		for _, b := range page.Bookings {
			result.Scanned++
			trackDates(result, b.StartAt)
			if err := e.processBooking(ctx, siteID, b, dryRun, result); err != nil {
				result.Errors++
				e.logger.Warn("cleanup: booking failed", "site_id", siteID, "booking_id", b.BookingID, "error", err)
			}
		}
		if len(page.Cursor) == 0 {
			break
		}
		cursor = page.Cursor
	}

	e.logger.Info("cleanup: scan complete",
		"site_id", siteID,
		"cutoff", cutoff,
		"dry_run", dryRun,
		"scanned", result.Scanned,
		"archived", result.Archived,
		"errors", result.Errors,
	)
	return result, nil
}

func (e *Engine) processBooking(ctx context.Context, siteID string, b booking.Booking, dryRun bool, result *CleanupResult) error {
	if b.IsFollowUp {
		// A follow-up step has no independent historical value.
		if !dryRun {
			if err := e.bookings.Delete(ctx, siteID, b.BookingID); err != nil {
				return err
			}
		}
		result.SkippedFollowups++
		return nil
	}

	if !dryRun {
		if err := e.archives.Put(ctx, archivedFromBooking(b)); err != nil {
			return err
		}
		if err := e.bookings.Delete(ctx, siteID, b.BookingID); err != nil {
			return err
		}
	}
	result.Archived++
	result.DeletedActive++
	return nil
}

// archivedFromBooking normalizes the status on the way into history: a
// past-due booking still awaiting confirmation archives as expired.
func archivedFromBooking(b booking.Booking) *archive.ArchivedBooking {
	status := b.Status
	if status == booking.StatusAwaitingConfirmation {
		status = booking.StatusExpired
	}
	return &archive.ArchivedBooking{
		SiteID:        b.SiteID,
		ArchiveKey:    archive.DedupKey(b.CustomerPhone, b.ServiceTypeID),
		BookingID:     b.BookingID,
		CustomerPhone: b.CustomerPhone,
		ClientName:    b.ClientName,
		StartAt:       b.StartAt,
		Status:        status,
		ServiceTypeID: b.ServiceTypeID,
		ServiceName:   b.ServiceName,
	}
}

func (e *Engine) resolveCutoff(ctx context.Context, siteID, cutoffDate string) (string, error) {
	loc := e.siteLocation(ctx, siteID)
	if cutoffDate == "" {
		now := e.now().In(loc)
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		return booking.FormatInstant(start), nil
	}
	day, err := time.ParseInLocation("2006-01-02", cutoffDate, loc)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadCutoff, cutoffDate)
	}
	return booking.FormatInstant(day), nil
}

func (e *Engine) siteLocation(ctx context.Context, siteID string) *time.Location {
	tz := e.defaultTimezone
	if e.sites != nil {
		if site, err := e.sites.Get(ctx, siteID); err == nil && site.Timezone != "" {
			tz = site.Timezone
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func trackDates(result *CleanupResult, startAt string) {
	if startAt == "" {
		return
	}
	date := startAt
	if len(date) >= 10 {
		date = date[:10]
	}
	if result.MinDate == "" || date < result.MinDate {
		result.MinDate = date
	}
	if result.MaxDate == "" || date > result.MaxDate {
		result.MaxDate = date
	}
}
