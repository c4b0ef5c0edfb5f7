package inbound

import (
	"context"
	"strings"
	"testing"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/cascade"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/session"
)

type fakeResolver struct {
	candidates []booking.Candidate
	err        error
}

func (f *fakeResolver) Resolve(context.Context, string, int) ([]booking.Candidate, error) {
	return f.candidates, f.err
}

type fakeSessions struct {
	sessions map[string]*session.Session
	created  *session.Session
	deleted  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*session.Session{}}
}

func (f *fakeSessions) Get(_ context.Context, phone string) (*session.Session, error) {
	sess, ok := f.sessions[phone]
	if !ok {
		return nil, session.ErrNoSession
	}
	return sess, nil
}

func (f *fakeSessions) Create(_ context.Context, sess *session.Session) error {
	f.created = sess
	f.sessions[sess.Phone] = sess
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, phone string) error {
	f.deleted = append(f.deleted, phone)
	delete(f.sessions, phone)
	return nil
}

type statusCall struct {
	siteID, bookingID string
	status            booking.Status
}

type fakeWriter struct {
	calls []statusCall
	err   error
}

func (f *fakeWriter) UpdateStatus(_ context.Context, siteID, bookingID string, status booking.Status, _, _ string) error {
	f.calls = append(f.calls, statusCall{siteID, bookingID, status})
	return f.err
}

type fakeCascades struct {
	related   []string
	cancelled []string
	actor     cascade.ActorKind
}

func (f *fakeCascades) ResolveRelated(_ context.Context, _, bookingID string) ([]string, error) {
	if len(f.related) == 0 {
		return []string{bookingID}, nil
	}
	return f.related, nil
}

func (f *fakeCascades) CancelCascade(_ context.Context, _ string, ids []string, actor cascade.ActorKind, _ cascade.Options) cascade.Result {
	f.cancelled = ids
	f.actor = actor
	return cascade.Result{IDs: ids, SuccessCount: len(ids)}
}

func cand(id, start string) booking.Candidate {
	return booking.Candidate{
		BookingRef: "site-1:" + id,
		SiteID:     "site-1",
		BookingID:  id,
		StartAt:    start,
		SiteName:   "Studio Noa",
	}
}

type fixture struct {
	interp   *Interpreter
	resolver *fakeResolver
	sessions *fakeSessions
	writer   *fakeWriter
	cascades *fakeCascades
}

func newFixture(candidates ...booking.Candidate) *fixture {
	f := &fixture{
		resolver: &fakeResolver{candidates: candidates},
		sessions: newFakeSessions(),
		writer:   &fakeWriter{},
		cascades: &fakeCascades{},
	}
	f.interp = NewInterpreter(InterpreterConfig{
		Resolver:     f.resolver,
		Sessions:     f.sessions,
		Bookings:     f.writer,
		Cascades:     f.cascades,
		MaxSelection: 5,
	})
	return f
}

func TestHandleConfirmSingleCandidate(t *testing.T) {
	f := newFixture(cand("b1", "2026-09-01T10:00:00Z"))

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeConfirmed {
		t.Fatalf("expected confirmed outcome, got %q", out.Kind)
	}
	if len(f.writer.calls) != 1 || f.writer.calls[0].status != booking.StatusConfirmed {
		t.Fatalf("expected one confirm write, got %+v", f.writer.calls)
	}
	if f.sessions.created != nil {
		t.Fatal("single candidate must not create a session")
	}
}

func TestHandleCancelSingleCandidateCascades(t *testing.T) {
	f := newFixture(cand("b1", "2026-09-01T10:00:00Z"))
	f.cascades.related = []string{"b1", "b2"}

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "cancel"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %q", out.Kind)
	}
	if len(f.cascades.cancelled) != 2 {
		t.Fatalf("expected whole set cancelled, got %v", f.cascades.cancelled)
	}
	if f.cascades.actor != cascade.ActorCustomer {
		t.Fatalf("expected customer actor, got %q", f.cascades.actor)
	}
}

func TestHandleConfirmOnClosedBookingAnswersGracefully(t *testing.T) {
	f := newFixture(cand("b1", "2026-09-01T10:00:00Z"))
	f.writer.err = booking.ErrBookingClosed

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeAlreadyClosed {
		t.Fatalf("expected already-closed outcome, got %q", out.Kind)
	}
	if !strings.Contains(out.Reply, "already been cancelled") {
		t.Fatalf("reply must explain the booking is closed, got %q", out.Reply)
	}
}

func TestHandleIntentNoCandidates(t *testing.T) {
	f := newFixture()

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "כן"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeNothingPending || out.Reply == "" {
		t.Fatalf("expected nothing-pending reply, got %+v", out)
	}
	if len(f.writer.calls) != 0 || f.sessions.created != nil {
		t.Fatal("no candidates must mutate nothing")
	}
}

func TestHandleAmbiguousCreatesSession(t *testing.T) {
	f := newFixture(
		cand("b1", "2026-09-01T10:00:00Z"),
		cand("b2", "2026-09-02T10:00:00Z"),
	)

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "no", MessageID: "SM1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeSessionCreated {
		t.Fatalf("expected session outcome, got %q", out.Kind)
	}
	if len(f.writer.calls) != 0 || len(f.cascades.cancelled) != 0 {
		t.Fatal("no booking may be mutated before a selection")
	}
	sess := f.sessions.created
	if sess == nil || sess.Intent != string(IntentCancel) || len(sess.Choices) != 2 {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.LastMessageID != "SM1" {
		t.Fatalf("expected inbound message id recorded, got %q", sess.LastMessageID)
	}
	if !strings.Contains(out.Reply, "1)") || !strings.Contains(out.Reply, "2)") {
		t.Fatalf("prompt must list 1-based ordinals, got %q", out.Reply)
	}
}

func TestHandleAmbiguousCapsChoices(t *testing.T) {
	many := make([]booking.Candidate, 0, 7)
	for _, id := range []string{"b1", "b2", "b3", "b4", "b5", "b6", "b7"} {
		many = append(many, cand(id, "2026-09-01T10:00:00Z"))
	}
	f := newFixture(many...)

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeSessionCreated {
		t.Fatalf("expected session outcome, got %q", out.Kind)
	}
	if len(f.sessions.created.Choices) != 5 {
		t.Fatalf("expected choices capped at 5, got %d", len(f.sessions.created.Choices))
	}
}

func TestHandleValidSelectionAppliesAndConsumes(t *testing.T) {
	f := newFixture()
	f.sessions.sessions["+972501234567"] = &session.Session{
		Phone:  "+972501234567",
		Intent: string(IntentConfirm),
		Choices: []booking.Candidate{
			cand("b1", "2026-09-01T10:00:00Z"),
			cand("b2", "2026-09-02T10:00:00Z"),
		},
	}

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeConfirmed {
		t.Fatalf("expected confirmed outcome, got %q", out.Kind)
	}
	if len(f.writer.calls) != 1 || f.writer.calls[0].bookingID != "b2" {
		t.Fatalf("expected choices[1] confirmed, got %+v", f.writer.calls)
	}
	if len(f.sessions.deleted) != 1 {
		t.Fatal("session must be consumed after a valid selection")
	}
}

func TestHandleOutOfRangeSelectionKeepsSession(t *testing.T) {
	f := newFixture()
	f.sessions.sessions["+972501234567"] = &session.Session{
		Phone:   "+972501234567",
		Intent:  string(IntentCancel),
		Choices: []booking.Candidate{cand("b1", "2026-09-01T10:00:00Z")},
	}

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeInvalidSelection {
		t.Fatalf("expected invalid-selection outcome, got %q", out.Kind)
	}
	if len(f.sessions.deleted) != 0 {
		t.Fatal("invalid selection must leave the session intact")
	}
	if len(f.writer.calls) != 0 || len(f.cascades.cancelled) != 0 {
		t.Fatal("invalid selection must mutate nothing")
	}
}

func TestHandleZeroSelectionRepromptsWithRange(t *testing.T) {
	f := newFixture()
	f.sessions.sessions["+972501234567"] = &session.Session{
		Phone:   "+972501234567",
		Intent:  string(IntentConfirm),
		Choices: []booking.Candidate{cand("b1", "2026-09-01T10:00:00Z")},
	}

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeInvalidSelection {
		t.Fatalf("expected invalid-selection outcome for 0, got %q", out.Kind)
	}
	if len(f.sessions.deleted) != 0 {
		t.Fatal("out-of-range ordinal must leave the session intact")
	}
}

func TestHandleSelectionWithoutSessionIgnored(t *testing.T) {
	f := newFixture()

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeIgnored || out.Reply != "" {
		t.Fatalf("bare number without a session must be ignored, got %+v", out)
	}
}

func TestHandleUnrecognizedBodyIgnored(t *testing.T) {
	f := newFixture(cand("b1", "2026-09-01T10:00:00Z"))

	out, err := f.interp.Handle(context.Background(), Message{Phone: "+972501234567", Body: "what time was it again?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeIgnored {
		t.Fatalf("expected ignored outcome, got %q", out.Kind)
	}
	if len(f.writer.calls) != 0 || f.sessions.created != nil {
		t.Fatal("unrecognized body must mutate nothing")
	}
}
