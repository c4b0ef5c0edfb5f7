package booking

import (
	"context"
	"fmt"

	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

// fallbackSiteName is used when a tenant's display name cannot be resolved.
const fallbackSiteName = "the salon"

// Candidate is one booking a customer may be replying about, enriched for
// presentation in a selection prompt.
type Candidate struct {
	BookingRef  string `json:"bookingRef"`
	SiteID      string `json:"siteId"`
	BookingID   string `json:"bookingId"`
	StartAt     string `json:"startAt"`
	SiteName    string `json:"siteName"`
	ServiceName string `json:"serviceName,omitempty"`
}

type candidateSource interface {
	FindAwaitingConfirmation(ctx context.Context, phone string, limit int) ([]Booking, error)
}

// SiteNamer resolves a tenant's display name.
type SiteNamer interface {
	DisplayName(ctx context.Context, siteID string) (string, error)
}

// Resolver finds the bookings a phone number could be replying about.
type Resolver struct {
	source candidateSource
	sites  SiteNamer
	logger *logging.Logger
}

// NewResolver builds a candidate resolver.
func NewResolver(source candidateSource, sites SiteNamer, logger *logging.Logger) *Resolver {
	if source == nil {
		panic("booking: candidate source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{source: source, sites: sites, logger: logger}
}

// Resolve returns presentation-ready candidates ascending by start time.
// Tenant name resolution is best-effort: a missing name degrades to a
// generic label, never fails the whole lookup.
func (r *Resolver) Resolve(ctx context.Context, phone string, limit int) ([]Candidate, error) {
	bookings, err := r.source.FindAwaitingConfirmation(ctx, phone, limit)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	candidates := make([]Candidate, 0, len(bookings))
	for _, b := range bookings {
		name, ok := names[b.SiteID]
		if !ok {
			name = r.siteName(ctx, b.SiteID)
			names[b.SiteID] = name
		}
		candidates = append(candidates, Candidate{
			BookingRef:  fmt.Sprintf("%s:%s", b.SiteID, b.BookingID),
			SiteID:      b.SiteID,
			BookingID:   b.BookingID,
			StartAt:     b.StartAt,
			SiteName:    name,
			ServiceName: b.ServiceName,
		})
	}
	return candidates, nil
}

func (r *Resolver) siteName(ctx context.Context, siteID string) string {
	if r.sites == nil {
		return fallbackSiteName
	}
	name, err := r.sites.DisplayName(ctx, siteID)
	if err != nil || name == "" {
		r.logger.Warn("booking: site name lookup failed", "site_id", siteID, "error", err)
		return fallbackSiteName
	}
	return name
}
