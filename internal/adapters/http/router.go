package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
	"github.com/Kenny1338/better-paperless-ngx/internal/observability/metrics"
)

const maxWebhookBody = 64 << 10

// SyncTrigger requests an immediate listener sync.
type SyncTrigger interface {
	TriggerSync(ctx context.Context) error
}

type Config struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	// MaxInFlight bounds concurrent webhook processing; 0 disables the gate.
	MaxInFlight  int
	QueueTimeout time.Duration
}

// Router serves the listener control plane.
type Router struct {
	processor      ports.DocumentProcessor
	sync           SyncTrigger
	metrics        *metrics.HTTPServerMetrics
	metricsHandler http.Handler
	cfg            Config
}

func NewRouter(
	processor ports.DocumentProcessor,
	sync SyncTrigger,
	httpMetrics *metrics.HTTPServerMetrics,
	metricsHandler http.Handler,
	cfg Config,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "better-paperless"
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = 100 * time.Millisecond
	}
	return &Router{
		processor:      processor,
		sync:           sync,
		metrics:        httpMetrics,
		metricsHandler: metricsHandler,
		cfg:            cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}
	mux.HandleFunc("POST /sync", rt.triggerSync)
	mux.Handle("POST /webhook/paperless", backpressureMiddleware(http.HandlerFunc(rt.webhook), rt.cfg.MaxInFlight, rt.cfg.QueueTimeout))

	var handler http.Handler = mux
	if rt.cfg.RateLimitRPS > 0 {
		handler = newRateLimiter(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, rt.onRateLimited).middleware(handler)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) onRateLimited(r *http.Request) {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(rt.cfg.Service, r.URL.Path)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) triggerSync(w http.ResponseWriter, r *http.Request) {
	if rt.sync == nil {
		writeError(w, domain.WrapError(domain.ErrTemporary, "trigger sync", errors.New("listener is not running")))
		return
	}
	if err := rt.sync.TriggerSync(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "sync requested",
		"request_id": requestIDFromContext(r.Context()),
	})
}

type webhookRequest struct {
	DocumentID json.Number `json:"document_id"`
	// URL is sent by paperless workflow webhooks, e.g. ".../documents/12/".
	URL string `json:"url"`
}

// webhook processes one document synchronously and returns its result.
// The status is 200 when the pass succeeded and 422 when it failed.
func (rt *Router) webhook(w http.ResponseWriter, r *http.Request) {
	id, err := parseWebhookDocumentID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result := rt.processor.Process(r.Context(), id)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func parseWebhookDocumentID(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("document_id"); raw != "" {
		return parseDocumentID(raw)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "read webhook body", err)
	}
	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "decode webhook body", err)
	}
	if req.DocumentID != "" {
		return parseDocumentID(req.DocumentID.String())
	}
	if req.URL != "" {
		return documentIDFromURL(req.URL)
	}
	return 0, domain.WrapError(domain.ErrInvalidInput, "decode webhook body", errors.New("document_id is required"))
}

func parseDocumentID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse document id", fmt.Errorf("invalid document id %q", raw))
	}
	return id, nil
}

func documentIDFromURL(raw string) (int, error) {
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	for i := len(parts) - 1; i > 0; i-- {
		if parts[i-1] == "documents" {
			return parseDocumentID(parts[i])
		}
	}
	return 0, domain.WrapError(domain.ErrInvalidInput, "parse document url", fmt.Errorf("no document id in %q", raw))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
