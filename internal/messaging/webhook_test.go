package messaging

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/inbound"
)

type fakeInterpreter struct {
	lastMsg inbound.Message
	outcome *inbound.Outcome
	err     error
}

func (f *fakeInterpreter) Handle(_ context.Context, msg inbound.Message) (*inbound.Outcome, error) {
	f.lastMsg = msg
	return f.outcome, f.err
}

type fakeRecorder struct {
	outcomes []string
}

func (f *fakeRecorder) ObserveInboundReply(outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

func postForm(h *WebhookHandler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandlesReply(t *testing.T) {
	interp := &fakeInterpreter{outcome: &inbound.Outcome{Kind: inbound.OutcomeConfirmed, Reply: "Thanks!"}}
	rec := &fakeRecorder{}
	h := NewWebhookHandler(WebhookConfig{
		Interpreter:    interp,
		DefaultCountry: "972",
		Metrics:        rec,
	})

	form := url.Values{}
	form.Set("From", "whatsapp:0501234567")
	form.Set("Body", "yes")
	form.Set("MessageSid", "SM1")

	resp := postForm(h, form)
	if resp.Code != 200 {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "<Message>Thanks!</Message>") {
		t.Fatalf("expected TwiML reply, got %q", resp.Body.String())
	}
	// Transport prefix stripped and trunk zero replaced with country code.
	if interp.lastMsg.Phone != "+972501234567" {
		t.Fatalf("expected canonical phone, got %q", interp.lastMsg.Phone)
	}
	if interp.lastMsg.MessageID != "SM1" {
		t.Fatalf("expected message sid forwarded, got %q", interp.lastMsg.MessageID)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != inbound.OutcomeConfirmed {
		t.Fatalf("expected outcome observed, got %v", rec.outcomes)
	}
}

func TestWebhookEmptyReplyOmitsMessageNode(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{
		Interpreter:    &fakeInterpreter{outcome: &inbound.Outcome{Kind: inbound.OutcomeIgnored}},
		DefaultCountry: "972",
	})

	form := url.Values{}
	form.Set("From", "+972501234567")
	form.Set("Body", "??")

	resp := postForm(h, form)
	if resp.Code != 200 {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "<Message>") {
		t.Fatalf("expected empty ack, got %q", resp.Body.String())
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{
		Interpreter: &fakeInterpreter{outcome: &inbound.Outcome{Kind: inbound.OutcomeIgnored}},
		AuthToken:   "secret",
		WebhookURL:  "https://salon.example.com/webhooks/twilio/sms",
	})

	form := url.Values{}
	form.Set("From", "+972501234567")
	form.Set("Body", "yes")

	resp := postForm(h, form)
	if resp.Code != 403 {
		t.Fatalf("expected 403 for unsigned request, got %d", resp.Code)
	}
}

func TestWebhookUnparseableSenderAcked(t *testing.T) {
	interp := &fakeInterpreter{outcome: &inbound.Outcome{Kind: inbound.OutcomeIgnored}}
	h := NewWebhookHandler(WebhookConfig{
		Interpreter:    interp,
		DefaultCountry: "972",
	})

	form := url.Values{}
	form.Set("From", "not-a-number")
	form.Set("Body", "yes")

	resp := postForm(h, form)
	if resp.Code != 200 {
		t.Fatalf("expected graceful ack, got %d", resp.Code)
	}
	if interp.lastMsg.Phone != "" {
		t.Fatal("interpreter must not run for an unparseable sender")
	}
}

func TestWebhookInterpreterErrorIsGraceful(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewWebhookHandler(WebhookConfig{
		Interpreter:    &fakeInterpreter{err: errors.New("store down")},
		DefaultCountry: "972",
		Metrics:        rec,
	})

	form := url.Values{}
	form.Set("From", "+972501234567")
	form.Set("Body", "yes")

	resp := postForm(h, form)
	if resp.Code != 200 {
		t.Fatalf("expected graceful 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "went wrong") {
		t.Fatalf("expected apology reply, got %q", resp.Body.String())
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "error" {
		t.Fatalf("expected error outcome observed, got %v", rec.outcomes)
	}
}
