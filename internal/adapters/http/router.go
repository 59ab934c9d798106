package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dreamerdocs/document-analysis/internal/config"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
	"github.com/dreamerdocs/document-analysis/internal/observability/metrics"
)

const maxWebhookBytes = 256 << 10

// Services groups the inbound ports served over HTTP.
type Services struct {
	Uploader  ports.DocumentUploader
	Lifecycle ports.DocumentLifecycle
	Payments  ports.PaymentGate
	Analysis  ports.AnalysisService
	Reports   ports.ReportExporter
}

type Router struct {
	cfg         config.Config
	services    Services
	httpMetrics *metrics.HTTPServerMetrics
	logger      *slog.Logger
}

// NewRouter builds the API router. httpMetrics may be nil; a nil logger falls
// back to slog.Default().
func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:         cfg,
		services:    services,
		httpMetrics: httpMetrics,
		logger:      logger,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(rt.recoverPanics, requestIDMiddleware, rt.accessLog)
	if rt.httpMetrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.httpMetrics.Middleware(next)
		})
	}
	r.Use(func(next http.Handler) http.Handler {
		return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected)
	})
	r.Use(func(next http.Handler) http.Handler {
		return backpressureMiddleware(next, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWait, rt.rejected)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", Code: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Code: "method_not_allowed"})
	})

	r.Get("/healthz", rt.healthz)
	if rt.httpMetrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.httpMetrics.Handler())
	}
	r.Get("/openapi.json", rt.openAPIDocument)

	r.Route("/v1/documents", func(r chi.Router) {
		r.Post("/", rt.uploadDocument)
		r.Get("/", rt.listDocuments)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", rt.getDocument)
			r.Get("/download", rt.downloadDocument)
			r.Post("/payment", rt.beginPayment)
			r.Post("/payment/confirm", rt.confirmPayment)
			r.Post("/analysis", rt.requestAnalysis)
			r.Get("/analysis", rt.getAnalysis)
			r.Get("/report.xlsx", rt.exportReport)
		})
	})
	r.Post("/v1/payments/webhook", rt.paymentWebhook)

	return r
}

func (rt *Router) rejected(reason string) {
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordRejected(reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
