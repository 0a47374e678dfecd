package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/replyreminder/replyreminder/internal/messenger"
	"github.com/replyreminder/replyreminder/internal/metrics"
)

// WebhookService processes verified webhook deliveries.
type WebhookService interface {
	HandleWebhook(ctx context.Context, payload *messenger.Payload) error
}

// WebhookConfig holds the platform secrets for the webhook endpoints.
type WebhookConfig struct {
	// VerifyToken is the shared secret of the subscription handshake.
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 verification when set.
	AppSecret string
}

// WebhookHandler handles the chat platform webhook.
type WebhookHandler struct {
	svc     WebhookService
	cfg     WebhookConfig
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(svc WebhookService, cfg WebhookConfig, recorder metrics.Recorder, logger *slog.Logger) *WebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &WebhookHandler{
		svc:     svc,
		cfg:     cfg,
		metrics: recorder,
		logger:  logger,
	}
}

// Verify handles GET /webhook/. On a matching subscribe request the
// challenge is echoed back as a bare JSON integer.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")

	if mode != "subscribe" || !h.tokenMatches(token) {
		h.metrics.IncWebhookRejected("verify_token")
		h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
		writeFailure(w, http.StatusForbidden, "verification failed")
		return
	}

	challenge, err := strconv.ParseInt(q.Get("hub.challenge"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid hub.challenge")
		return
	}

	h.logger.Info("webhook verified")
	writeJSON(w, http.StatusOK, challenge)
}

func (h *WebhookHandler) tokenMatches(token string) bool {
	if h.cfg.VerifyToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.VerifyToken)) == 1
}

// Receive handles POST /webhook/.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeFailure(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if h.cfg.AppSecret != "" {
		if err := messenger.VerifySignature(h.cfg.AppSecret, r.Header.Get(messenger.SignatureHeader), body); err != nil {
			h.metrics.IncWebhookRejected("signature")
			h.logger.Warn("webhook signature rejected", slog.String("error", err.Error()))
			writeFailure(w, http.StatusForbidden, "invalid signature")
			return
		}
	}

	var payload messenger.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.metrics.IncWebhookRejected("malformed")
		writeFailure(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), &payload); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}
