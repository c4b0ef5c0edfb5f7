package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/cascade"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/cleanup"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/messaging"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/recurrence"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

type cascadeService interface {
	ResolveRelated(ctx context.Context, siteID, bookingID string) ([]string, error)
	CancelCascade(ctx context.Context, siteID string, ids []string, actor cascade.ActorKind, opts cascade.Options) cascade.Result
}

type lifecycleService interface {
	RunCleanup(ctx context.Context, siteID, cutoffDate string, dryRun bool) (*cleanup.CleanupResult, error)
	Dedupe(ctx context.Context, siteID, clientPhone string) (*cleanup.DedupeAllResult, error)
	Purge(ctx context.Context, siteID string) (*cleanup.PurgeResult, error)
}

type bookingReader interface {
	Get(ctx context.Context, siteID, bookingID string) (*booking.Booking, error)
}

type platformRecorder interface {
	ObserveCascade(succeeded, failed int)
	ObserveCleanupRun(dryRun bool, archived int)
	ObservePurge(cancelled, expired int)
}

// AdminHandler serves the per-site admin operations.
type AdminHandler struct {
	cascades       cascadeService
	lifecycle      lifecycleService
	bookings       bookingReader
	messenger      messaging.Messenger
	metrics        platformRecorder
	maxOccurrences int
	logger         *logging.Logger
}

// AdminConfig wires the admin handler. Messenger and Metrics are optional.
type AdminConfig struct {
	Cascades       cascadeService
	Lifecycle      lifecycleService
	Bookings       bookingReader
	Messenger      messaging.Messenger
	Metrics        platformRecorder
	MaxOccurrences int
	Logger         *logging.Logger
}

// NewAdminHandler builds the admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	if cfg.Cascades == nil {
		panic("api: cascade service cannot be nil")
	}
	if cfg.Lifecycle == nil {
		panic("api: lifecycle service cannot be nil")
	}
	if cfg.Bookings == nil {
		panic("api: booking reader cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminHandler{
		cascades:       cfg.Cascades,
		lifecycle:      cfg.Lifecycle,
		bookings:       cfg.Bookings,
		messenger:      cfg.Messenger,
		metrics:        cfg.Metrics,
		maxOccurrences: cfg.MaxOccurrences,
		logger:         cfg.Logger,
	}
}

type cascadeCancelRequest struct {
	Reason string `json:"reason"`
	DryRun bool   `json:"dryRun"`
}

type cascadeCancelResponse struct {
	IDs          []string `json:"ids"`
	SuccessCount int      `json:"successCount"`
	FailCount    int      `json:"failCount"`
	DryRun       bool     `json:"dryRun,omitempty"`
}

// CascadeCancel resolves the full multi-step appointment set containing the
// booking and cancels it on behalf of the salon. With dryRun the resolved
// set is surfaced without cancelling anything, so operators can inspect what
// the heuristic selected before committing.
func (h *AdminHandler) CascadeCancel(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	bookingID := chi.URLParam(r, "bookingID")

	var req cascadeCancelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadInput, err.Error())
		return
	}

	ids, err := h.cascades.ResolveRelated(r.Context(), siteID, bookingID)
	if err != nil {
		h.logger.Error("api: cascade resolve failed", "site_id", siteID, "booking_id", bookingID, "error", err)
		writeDomainError(w, err)
		return
	}

	if req.DryRun {
		writeJSON(w, http.StatusOK, cascadeCancelResponse{IDs: ids, DryRun: true})
		return
	}

	target, err := h.bookings.Get(r.Context(), siteID, bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := h.cascades.CancelCascade(r.Context(), siteID, ids, cascade.ActorSalon, cascade.Options{
		CancelledBy: "salon",
		Reason:      req.Reason,
	})
	if h.metrics != nil {
		h.metrics.ObserveCascade(result.SuccessCount, result.FailCount)
	}
	h.logger.Info("api: cascade cancel committed",
		"site_id", siteID, "booking_id", bookingID,
		"success", result.SuccessCount, "failed", result.FailCount)

	h.notifyCancellation(r.Context(), target, len(ids))

	writeJSON(w, http.StatusOK, cascadeCancelResponse{
		IDs:          result.IDs,
		SuccessCount: result.SuccessCount,
		FailCount:    result.FailCount,
	})
}

// notifyCancellation tells the customer their appointment set was cancelled.
// Best-effort: a send failure never fails the admin request.
func (h *AdminHandler) notifyCancellation(ctx context.Context, target *booking.Booking, setSize int) {
	if h.messenger == nil || target.CustomerPhone == "" {
		return
	}
	body := "Your upcoming appointment has been cancelled by the salon."
	if setSize > 1 {
		body = fmt.Sprintf("Your %d upcoming appointments have been cancelled by the salon.", setSize)
	}
	if err := h.messenger.Send(ctx, messaging.OutboundSMS{To: target.CustomerPhone, Body: body}); err != nil {
		h.logger.Warn("api: cancellation notice failed",
			"site_id", target.SiteID, "phone", target.CustomerPhone, "error", err)
	}
}

type dedupeRequest struct {
	ClientPhone string `json:"clientPhone"`
}

// Dedupe collapses duplicate archive rows, for one client or the whole site.
// A client-scoped call answers with that client's counts alone; the
// site-wide call answers with the aggregate.
func (h *AdminHandler) Dedupe(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	var req dedupeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadInput, err.Error())
		return
	}

	result, err := h.lifecycle.Dedupe(r.Context(), siteID, req.ClientPhone)
	if err != nil {
		h.logger.Error("api: dedupe failed", "site_id", siteID, "error", err)
		writeDomainError(w, err)
		return
	}
	if req.ClientPhone != "" {
		writeJSON(w, http.StatusOK, cleanup.DedupeResult{
			DeletedCount: result.TotalDeleted,
			WrittenCount: result.TotalWritten,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Purge permanently deletes cancelled and expired archive rows.
func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	result, err := h.lifecycle.Purge(r.Context(), siteID)
	if err != nil {
		h.logger.Error("api: purge failed", "site_id", siteID, "error", err)
		writeDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObservePurge(result.DeletedCancelled, result.DeletedExpired)
	}
	writeJSON(w, http.StatusOK, result)
}

type cleanupRequest struct {
	CutoffDate string `json:"cutoffDate"`
	DryRun     bool   `json:"dryRun"`
}

// Cleanup migrates past-due bookings into the archive.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	var req cleanupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadInput, err.Error())
		return
	}

	result, err := h.lifecycle.RunCleanup(r.Context(), siteID, req.CutoffDate, req.DryRun)
	if err != nil {
		if errors.Is(err, cleanup.ErrBadCutoff) {
			writeError(w, http.StatusBadRequest, CodeBadInput, "cutoffDate must be YYYY-MM-DD")
			return
		}
		h.logger.Error("api: cleanup failed", "site_id", siteID, "error", err)
		writeDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveCleanupRun(req.DryRun, result.Archived)
	}
	writeJSON(w, http.StatusOK, result)
}

type recurrencePreviewRequest struct {
	StartDate string `json:"startDate"`
	Time      string `json:"time"`
	Count     int    `json:"count"`
	EndDate   string `json:"endDate"`
}

type recurrencePreviewResponse struct {
	Occurrences []recurrence.Occurrence `json:"occurrences"`
}

// RecurrencePreview expands a weekly series request into its concrete dates
// so the booking UI can show the series before creating anything.
func (h *AdminHandler) RecurrencePreview(w http.ResponseWriter, r *http.Request) {
	var req recurrencePreviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadInput, err.Error())
		return
	}
	if req.StartDate == "" {
		writeError(w, http.StatusBadRequest, CodeBadInput, "startDate required")
		return
	}
	occurrences := recurrence.ComputeWeeklyOccurrences(req.StartDate, req.Time,
		recurrence.Bounds{Count: req.Count, EndDate: req.EndDate}, h.maxOccurrences)
	if occurrences == nil {
		// Soft failure: a bad date yields an empty series, not an error.
		occurrences = []recurrence.Occurrence{}
	}
	writeJSON(w, http.StatusOK, recurrencePreviewResponse{Occurrences: occurrences})
}

// decodeBody parses an optional JSON body. A missing or empty body is fine;
// malformed JSON is not.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
