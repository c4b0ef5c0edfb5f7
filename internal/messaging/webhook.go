package messaging

import (
	"context"
	"encoding/xml"
	"net/http"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/inbound"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

type replyInterpreter interface {
	Handle(ctx context.Context, msg inbound.Message) (*inbound.Outcome, error)
}

type outcomeRecorder interface {
	ObserveInboundReply(outcome string)
}

// WebhookHandler terminates Twilio inbound SMS deliveries: it validates the
// signature, canonicalizes the sender's phone, runs the interpreter, and
// answers with a TwiML body carrying the user-visible reply.
type WebhookHandler struct {
	interpreter    replyInterpreter
	authToken      string
	webhookURL     string
	defaultCountry string
	metrics        outcomeRecorder
	logger         *logging.Logger
}

// WebhookConfig wires the webhook handler. An empty AuthToken disables
// signature validation, for local development only.
type WebhookConfig struct {
	Interpreter    replyInterpreter
	AuthToken      string
	WebhookURL     string
	DefaultCountry string
	Metrics        outcomeRecorder
	Logger         *logging.Logger
}

// NewWebhookHandler builds the inbound SMS handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Interpreter == nil {
		panic("messaging: interpreter cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		interpreter:    cfg.Interpreter,
		authToken:      cfg.AuthToken,
		webhookURL:     cfg.WebhookURL,
		defaultCountry: cfg.DefaultCountry,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" && !ValidateTwilioSignature(r, h.authToken, h.webhookURL) {
		h.logger.Warn("messaging: webhook signature rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	sms, err := ParseInboundSMS(r)
	if err != nil {
		h.logger.Warn("messaging: malformed webhook payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	phone := NormalizeE164(sms.From, h.defaultCountry)
	if phone == "" {
		// An unparseable sender is acknowledged, not bounced: the transport
		// would otherwise keep retrying a delivery we can never act on.
		h.logger.Warn("messaging: unparseable sender", "from", sms.From)
		h.observe(inbound.OutcomeIgnored)
		writeTwiML(w, "")
		return
	}

	outcome, err := h.interpreter.Handle(r.Context(), inbound.Message{
		Phone:     phone,
		Body:      sms.Body,
		MessageID: sms.MessageSid,
	})
	if err != nil {
		h.logger.Error("messaging: interpreter failed", "phone", phone, "error", err)
		h.observe("error")
		writeTwiML(w, "Sorry, something went wrong. Please try again in a moment.")
		return
	}

	h.observe(outcome.Kind)
	h.logger.Info("messaging: inbound reply handled",
		"phone", phone, "outcome", outcome.Kind, "message_sid", sms.MessageSid)
	writeTwiML(w, outcome.Reply)
}

func (h *WebhookHandler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveInboundReply(outcome)
	}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func writeTwiML(w http.ResponseWriter, reply string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	body, err := xml.Marshal(twimlResponse{Message: reply})
	if err != nil {
		return
	}
	w.Write(body)
}
