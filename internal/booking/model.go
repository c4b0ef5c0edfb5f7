package booking

import (
	"strings"
	"time"
)

// Status is the closed set of booking states. Legacy records carry many
// historical synonyms; NormalizeStatus folds them at the ingestion boundary
// so the engine never compares raw strings.
type Status string

const (
	StatusBooked               Status = "booked"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusCancelled            Status = "cancelled"
	StatusCancelledBySalon     Status = "cancelled_by_salon"
	StatusNoShow               Status = "no_show"
	StatusExpired              Status = "expired"
)

var statusSynonyms = map[string]Status{
	"booked":                StatusBooked,
	"approved":              StatusBooked,
	"scheduled":             StatusBooked,
	"awaiting_confirmation": StatusAwaitingConfirmation,
	"waiting_confirmation":  StatusAwaitingConfirmation,
	"pending":               StatusAwaitingConfirmation,
	"pending_confirmation":  StatusAwaitingConfirmation,
	"confirmed":             StatusConfirmed,
	"confirm":               StatusConfirmed,
	"cancelled":             StatusCancelled,
	"canceled":              StatusCancelled,
	"cancelled_by_client":   StatusCancelled,
	"cancelled_by_salon":    StatusCancelledBySalon,
	"canceled_by_salon":     StatusCancelledBySalon,
	"cancelled_by_business": StatusCancelledBySalon,
	"no_show":               StatusNoShow,
	"noshow":                StatusNoShow,
	"no-show":               StatusNoShow,
	"expired":               StatusExpired,
}

// NormalizeStatus maps a raw stored status onto the closed enum. Unrecognized
// values fold to booked, matching how legacy rows without a usable status
// were treated by the cleanup flows.
func NormalizeStatus(raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	if s, ok := statusSynonyms[key]; ok {
		return s
	}
	return StatusBooked
}

// IsTerminal reports whether a booking in this status never re-enters an
// active state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCancelledBySalon, StatusNoShow, StatusExpired:
		return true
	default:
		return false
	}
}

// Booking is one appointment instance. Instants are stored as RFC3339 UTC
// strings so DynamoDB range filters compare them lexicographically.
type Booking struct {
	SiteID        string `dynamodbav:"siteId" json:"siteId"`
	BookingID     string `dynamodbav:"bookingId" json:"bookingId"`
	CustomerPhone string `dynamodbav:"customerPhone" json:"customerPhone"`
	ClientName    string `dynamodbav:"clientName,omitempty" json:"clientName,omitempty"`
	StartAt       string `dynamodbav:"startAt" json:"startAt"`
	Status        Status `dynamodbav:"status" json:"status"`
	IsFollowUp    bool   `dynamodbav:"isFollowUpStep" json:"isFollowUpStep"`
	ServiceTypeID string `dynamodbav:"serviceTypeId,omitempty" json:"serviceTypeId,omitempty"`
	ServiceName   string `dynamodbav:"serviceName,omitempty" json:"serviceName,omitempty"`
	GroupRef      string `dynamodbav:"multiBookingGroupRef,omitempty" json:"multiBookingGroupRef,omitempty"`
	CancelledBy   string `dynamodbav:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancelReason  string `dynamodbav:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CreatedAt     string `dynamodbav:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt     string `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// StartTime parses the stored start instant. The zero time signals an
// unparseable value.
func (b Booking) StartTime() time.Time {
	t, err := time.Parse(time.RFC3339, b.StartAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatInstant renders an instant the way the store expects it.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
