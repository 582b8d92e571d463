package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/events"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

const (
	signatureHeader = "X-Signature"
	maxWebhookBody  = 1 << 20
)

type WebhookResponse struct {
	Status string `json:"status"` // processed, ignored
	Reason string `json:"reason,omitempty"`
}

// WebhookHandler accepts payment and conferencing callbacks signed with
// HMAC-SHA256 over the raw body, sent as "sha256=<hex>".
type WebhookHandler struct {
	handler            events.Handler
	paymentSecret      string
	conferencingSecret string
	logger             *logging.Logger
}

func NewWebhookHandler(handler events.Handler, paymentSecret, conferencingSecret string, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		handler:            handler,
		paymentSecret:      strings.TrimSpace(paymentSecret),
		conferencingSecret: strings.TrimSpace(conferencingSecret),
		logger:             logger,
	}
}

func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.verified(w, r, events.SourcePayments, h.paymentSecret)
	if !ok {
		return
	}

	var ev events.PaymentEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "payment event needs id, type and appointment_id")
		return
	}
	h.respond(w, r, events.SourcePayments, ev.ID, func(ctx context.Context) error {
		return h.handler.HandlePaymentEvent(ctx, ev)
	})
}

func (h *WebhookHandler) Conferencing(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.verified(w, r, events.SourceConferencing, h.conferencingSecret)
	if !ok {
		return
	}

	var ev events.ConferencingEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "conferencing event needs id, type and appointment_id")
		return
	}
	h.respond(w, r, events.SourceConferencing, ev.ID, func(ctx context.Context) error {
		return h.handler.HandleConferencingEvent(ctx, ev)
	})
}

func (h *WebhookHandler) verified(w http.ResponseWriter, r *http.Request, source events.Source, secret string) ([]byte, bool) {
	if h.handler == nil || secret == "" {
		h.logger.Error("webhook not configured", "source", source)
		writeError(w, http.StatusInternalServerError, "webhook_not_configured", "webhook secret not configured")
		return nil, false
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not read body")
		return nil, false
	}

	if !verifySignature(secret, payload, r.Header.Get(signatureHeader)) {
		h.logger.Warn("invalid webhook signature", "source", source, "request_id", GetRequestID(r.Context()))
		writeError(w, http.StatusUnauthorized, "invalid_signature", "signature mismatch")
		return nil, false
	}
	return payload, true
}

// respond acks events that can never apply so the sender stops retrying;
// anything else non-nil gets a 5xx and will be redelivered.
func (h *WebhookHandler) respond(w http.ResponseWriter, r *http.Request, source events.Source, eventID string, handle func(ctx context.Context) error) {
	err := handle(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "processed"})
	case appointment.Unprocessable(err):
		h.logger.Warn("webhook event ignored", "source", source, "event_id", eventID, "error", err)
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "ignored", Reason: err.Error()})
	default:
		h.logger.Error("webhook event failed", "source", source, "event_id", eventID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "event not processed")
	}
}

func verifySignature(secret string, payload []byte, header string) bool {
	const prefix = "sha256="
	header = strings.TrimSpace(header)
	if secret == "" || !strings.HasPrefix(header, prefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	return hmac.Equal(got, sign(secret, payload))
}

func sign(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload returns the header value a sender attaches to payload
func SignPayload(secret string, payload []byte) string {
	return "sha256=" + hex.EncodeToString(sign(secret, payload))
}
