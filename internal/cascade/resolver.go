package cascade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

// ActorKind distinguishes who asked for the cancellation; it selects the
// terminal status variant.
type ActorKind string

const (
	ActorCustomer ActorKind = "customer"
	ActorSalon    ActorKind = "salon"
)

// GroupingStrategy infers which of a customer's bookings belong to the same
// multi-step appointment as the target when no explicit group reference
// exists. Implementations are pure over the candidate slice so they can be
// tested in isolation.
type GroupingStrategy interface {
	Group(candidates []booking.Booking, target booking.Booking) []booking.Booking
}

// TimeWindowStrategy clusters same-phone bookings whose consecutive start
// times are within Window of each other, walking outward from the target.
// Best-effort: it can over-select unrelated same-day bookings and
// under-select sets spanning a longer gap, which is why callers surface the
// resolved set before committing.
type TimeWindowStrategy struct {
	Window time.Duration
}

// Group returns the contiguous cluster containing the target.
func (s TimeWindowStrategy) Group(candidates []booking.Booking, target booking.Booking) []booking.Booking {
	window := s.Window
	if window <= 0 {
		window = 90 * time.Minute
	}

	sorted := make([]booking.Booking, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartAt < sorted[j].StartAt })

	targetIdx := -1
	for i, b := range sorted {
		if b.BookingID == target.BookingID {
			targetIdx = i
			break
		}
	}
	if targetIdx == -1 {
		return []booking.Booking{target}
	}

	lo := targetIdx
	for lo > 0 && withinWindow(sorted[lo-1], sorted[lo], window) {
		lo--
	}
	hi := targetIdx
	for hi < len(sorted)-1 && withinWindow(sorted[hi], sorted[hi+1], window) {
		hi++
	}
	return sorted[lo : hi+1]
}

func withinWindow(a, b booking.Booking, window time.Duration) bool {
	at, bt := a.StartTime(), b.StartTime()
	if at.IsZero() || bt.IsZero() {
		return false
	}
	return bt.Sub(at) <= window
}

type bookingSource interface {
	Get(ctx context.Context, siteID, bookingID string) (*booking.Booking, error)
	ListByGroupRef(ctx context.Context, siteID, groupRef string) ([]booking.Booking, error)
	ListByPhone(ctx context.Context, siteID, phone string) ([]booking.Booking, error)
	UpdateStatus(ctx context.Context, siteID, bookingID string, status booking.Status, cancelledBy, reason string) error
}

// Resolver discovers and cancels whole multi-step appointment sets.
type Resolver struct {
	repo     bookingSource
	strategy GroupingStrategy
	logger   *logging.Logger
}

// NewResolver builds a cascade resolver. A nil strategy falls back to the
// default time-window heuristic.
func NewResolver(repo bookingSource, strategy GroupingStrategy, logger *logging.Logger) *Resolver {
	if repo == nil {
		panic("cascade: booking repository cannot be nil")
	}
	if strategy == nil {
		strategy = TimeWindowStrategy{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{repo: repo, strategy: strategy, logger: logger}
}

// ResolveRelated returns the ordered set of booking ids that must be
// cancelled together with the given booking. An explicit group reference is
// definitive; otherwise the grouping heuristic runs over the customer's
// bookings in the tenant. The returned set always includes the original id.
func (r *Resolver) ResolveRelated(ctx context.Context, siteID, bookingID string) ([]string, error) {
	target, err := r.repo.Get(ctx, siteID, bookingID)
	if err != nil {
		return nil, err
	}

	var related []booking.Booking
	if target.GroupRef != "" {
		related, err = r.repo.ListByGroupRef(ctx, siteID, target.GroupRef)
		if err != nil {
			return nil, fmt.Errorf("cascade: resolve group: %w", err)
		}
	} else {
		candidates, err := r.repo.ListByPhone(ctx, siteID, target.CustomerPhone)
		if err != nil {
			return nil, fmt.Errorf("cascade: list customer bookings: %w", err)
		}
		related = r.strategy.Group(candidates, *target)
	}

	ids := make([]string, 0, len(related))
	seen := map[string]bool{}
	for _, b := range related {
		if !seen[b.BookingID] {
			seen[b.BookingID] = true
			ids = append(ids, b.BookingID)
		}
	}
	if !seen[bookingID] {
		ids = append(ids, bookingID)
	}
	return ids, nil
}

// Result carries per-set cancellation accounting. successCount+failCount
// is the ground truth; a set cancellation is not a transaction.
type Result struct {
	IDs          []string `json:"ids"`
	SuccessCount int      `json:"successCount"`
	FailCount    int      `json:"failCount"`
}

// Options modulate how each booking is cancelled.
type Options struct {
	CancelledBy string
	Reason      string
}

// CancelCascade cancels each id independently. Per-id failures (a document
// vanishing mid-run, a throttled write) are counted and logged, never abort
// the remaining ids.
func (r *Resolver) CancelCascade(ctx context.Context, siteID string, ids []string, actor ActorKind, opts Options) Result {
	status := booking.StatusCancelled
	if actor == ActorSalon {
		status = booking.StatusCancelledBySalon
	}

	result := Result{IDs: ids}
	for _, id := range ids {
		if err := r.repo.UpdateStatus(ctx, siteID, id, status, opts.CancelledBy, opts.Reason); err != nil {
			result.FailCount++
			r.logger.Warn("cascade: cancel failed", "site_id", siteID, "booking_id", id, "error", err)
			continue
		}
		result.SuccessCount++
	}
	return result
}
