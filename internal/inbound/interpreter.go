package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/cascade"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/session"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

// Outcome kinds, used as metric labels and for webhook accounting.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeCancelled        = "cancelled"
	OutcomeSessionCreated   = "session_created"
	OutcomeNothingPending   = "nothing_pending"
	OutcomeInvalidSelection = "invalid_selection"
	OutcomeAlreadyClosed    = "already_closed"
	OutcomeIgnored          = "ignored"
)

// Message is one inbound customer reply, phone already canonical.
type Message struct {
	Phone     string
	Body      string
	MessageID string
}

// Outcome is what the interpreter did with a message and what to tell the
// customer. An empty Reply means acknowledge without responding.
type Outcome struct {
	Kind  string
	Reply string
}

type candidateResolver interface {
	Resolve(ctx context.Context, phone string, limit int) ([]booking.Candidate, error)
}

type sessionStore interface {
	Get(ctx context.Context, phone string) (*session.Session, error)
	Create(ctx context.Context, sess *session.Session) error
	Delete(ctx context.Context, phone string) error
}

type bookingWriter interface {
	UpdateStatus(ctx context.Context, siteID, bookingID string, status booking.Status, cancelledBy, reason string) error
}

type cascadeCanceller interface {
	ResolveRelated(ctx context.Context, siteID, bookingID string) ([]string, error)
	CancelCascade(ctx context.Context, siteID string, ids []string, actor cascade.ActorKind, opts cascade.Options) cascade.Result
}

// Interpreter maps a phone number and a free-text reply to exactly one
// booking action, staging a selection session when the reply is ambiguous.
type Interpreter struct {
	detector     *Detector
	resolver     candidateResolver
	sessions     sessionStore
	bookings     bookingWriter
	cascades     cascadeCanceller
	maxSelection int
	logger       *logging.Logger
}

// InterpreterConfig wires the interpreter's collaborators.
type InterpreterConfig struct {
	Detector     *Detector
	Resolver     candidateResolver
	Sessions     sessionStore
	Bookings     bookingWriter
	Cascades     cascadeCanceller
	MaxSelection int
	Logger       *logging.Logger
}

// NewInterpreter builds the inbound reply interpreter.
func NewInterpreter(cfg InterpreterConfig) *Interpreter {
	if cfg.Resolver == nil {
		panic("inbound: candidate resolver cannot be nil")
	}
	if cfg.Sessions == nil {
		panic("inbound: session store cannot be nil")
	}
	if cfg.Bookings == nil {
		panic("inbound: booking writer cannot be nil")
	}
	if cfg.Cascades == nil {
		panic("inbound: cascade resolver cannot be nil")
	}
	if cfg.Detector == nil {
		cfg.Detector = NewDetector()
	}
	if cfg.MaxSelection <= 0 {
		cfg.MaxSelection = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Interpreter{
		detector:     cfg.Detector,
		resolver:     cfg.Resolver,
		sessions:     cfg.Sessions,
		bookings:     cfg.Bookings,
		cascades:     cfg.Cascades,
		maxSelection: cfg.MaxSelection,
		logger:       cfg.Logger,
	}
}

// Handle runs one message through the state machine. Reads happen before the
// corresponding write within this call; no ordering is guaranteed across
// messages, so two near-simultaneous replies for the same phone may race on
// the session store.
func (i *Interpreter) Handle(ctx context.Context, msg Message) (*Outcome, error) {
	if msg.Phone == "" {
		return nil, errors.New("inbound: phone required")
	}

	if n, ok := i.detector.Selection(msg.Body); ok {
		return i.handleSelection(ctx, msg.Phone, n)
	}
	if intent, ok := i.detector.Detect(msg.Body); ok {
		return i.handleIntent(ctx, msg, intent)
	}

	// Unrecognized body. Any live session stays intact until the customer
	// sends a valid ordinal or it expires.
	return &Outcome{Kind: OutcomeIgnored}, nil
}

func (i *Interpreter) handleSelection(ctx context.Context, phone string, n int) (*Outcome, error) {
	sess, err := i.sessions.Get(ctx, phone)
	if errors.Is(err, session.ErrNoSession) {
		// A bare number with nothing pending means nothing to us.
		return &Outcome{Kind: OutcomeIgnored}, nil
	}
	if err != nil {
		return nil, err
	}

	if n < 1 || n > len(sess.Choices) {
		return &Outcome{
			Kind:  OutcomeInvalidSelection,
			Reply: fmt.Sprintf("That's not a valid choice. Please reply with a number between 1 and %d.", len(sess.Choices)),
		}, nil
	}

	outcome, err := i.apply(ctx, Intent(sess.Intent), sess.Choices[n-1])
	if err != nil {
		return nil, err
	}
	if err := i.sessions.Delete(ctx, phone); err != nil {
		// The action is already applied; a leftover session only risks a
		// duplicate no-op, so log and move on.
		i.logger.Warn("inbound: session delete failed", "phone", phone, "error", err)
	}
	return outcome, nil
}

func (i *Interpreter) handleIntent(ctx context.Context, msg Message, intent Intent) (*Outcome, error) {
	candidates, err := i.resolver.Resolve(ctx, msg.Phone, i.maxSelection)
	if err != nil {
		return nil, err
	}

	switch len(candidates) {
	case 0:
		return &Outcome{
			Kind:  OutcomeNothingPending,
			Reply: "We couldn't find an upcoming appointment waiting for your reply.",
		}, nil
	case 1:
		return i.apply(ctx, intent, candidates[0])
	}

	if len(candidates) > i.maxSelection {
		candidates = candidates[:i.maxSelection]
	}
	sess := &session.Session{
		Phone:         msg.Phone,
		Intent:        string(intent),
		Choices:       candidates,
		LastMessageID: msg.MessageID,
		LastBody:      msg.Body,
	}
	if err := i.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeSessionCreated, Reply: selectionPrompt(intent, candidates)}, nil
}

// apply performs the intent against one booking. Re-applying an intent after
// a duplicate delivery is a no-op success, but a confirm that lands after the
// booking was cancelled is rejected by the store and answered without
// resurrecting the row.
func (i *Interpreter) apply(ctx context.Context, intent Intent, cand booking.Candidate) (*Outcome, error) {
	switch intent {
	case IntentConfirm:
		if err := i.bookings.UpdateStatus(ctx, cand.SiteID, cand.BookingID, booking.StatusConfirmed, "", ""); err != nil {
			if errors.Is(err, booking.ErrBookingClosed) {
				return &Outcome{
					Kind:  OutcomeAlreadyClosed,
					Reply: fmt.Sprintf("Your appointment at %s on %s has already been cancelled and can no longer be confirmed.", cand.SiteName, formatStart(cand.StartAt)),
				}, nil
			}
			return nil, err
		}
		return &Outcome{
			Kind:  OutcomeConfirmed,
			Reply: fmt.Sprintf("Thanks! Your appointment at %s on %s is confirmed.", cand.SiteName, formatStart(cand.StartAt)),
		}, nil
	case IntentCancel:
		ids, err := i.cascades.ResolveRelated(ctx, cand.SiteID, cand.BookingID)
		if err != nil {
			return nil, err
		}
		res := i.cascades.CancelCascade(ctx, cand.SiteID, ids, cascade.ActorCustomer, cascade.Options{CancelledBy: "customer"})
		if res.FailCount > 0 {
			i.logger.Warn("inbound: cascade partially failed",
				"site_id", cand.SiteID, "booking_id", cand.BookingID,
				"success", res.SuccessCount, "failed", res.FailCount)
		}
		return &Outcome{
			Kind:  OutcomeCancelled,
			Reply: fmt.Sprintf("Your appointment at %s on %s has been cancelled.", cand.SiteName, formatStart(cand.StartAt)),
		}, nil
	}
	return nil, fmt.Errorf("inbound: unknown intent %q", intent)
}

func selectionPrompt(intent Intent, candidates []booking.Candidate) string {
	verb := "confirm"
	if intent == IntentCancel {
		verb = "cancel"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d upcoming appointments. Reply with the number you want to %s:\n", len(candidates), verb)
	for idx, c := range candidates {
		fmt.Fprintf(&b, "%d) %s on %s", idx+1, c.SiteName, formatStart(c.StartAt))
		if c.ServiceName != "" {
			fmt.Fprintf(&b, " (%s)", c.ServiceName)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStart(startAt string) string {
	t, err := time.Parse(time.RFC3339, startAt)
	if err != nil {
		return startAt
	}
	return t.Format("Mon, 2 Jan at 15:04")
}
