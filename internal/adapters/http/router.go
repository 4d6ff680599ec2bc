package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kirillkom/shipment-delay-console/internal/config"
	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
	"github.com/kirillkom/shipment-delay-console/internal/core/usecase"
)

// Console is what the HTTP surface needs from the pipeline controller.
type Console interface {
	ports.Pipeline
	Snapshot() usecase.Snapshot
	Optimization() usecase.OptimizationStatus
	Records(query string) ([]usecase.Card, error)
	Map() (*usecase.MapView, error)
	Workbook() (*domain.Workbook, error)
}

// HTTPMetrics instruments every request.
type HTTPMetrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

type Router struct {
	cfg      config.Config
	console  Console
	exporter ports.WorkbookWriter
	metrics  HTTPMetrics
	mcp      http.Handler
}

type Option func(*Router)

func WithMetrics(m HTTPMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// WithMCP mounts a Model Context Protocol endpoint at /mcp.
func WithMCP(h http.Handler) Option {
	return func(rt *Router) { rt.mcp = h }
}

func NewRouter(cfg config.Config, console Console, exporter ports.WorkbookWriter, opts ...Option) *Router {
	rt := &Router{
		cfg:      cfg,
		console:  console,
		exporter: exporter,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() (http.Handler, error) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler()).Methods(http.MethodGet)
	}
	if rt.mcp != nil {
		r.PathPrefix("/mcp").Handler(rt.mcp)
	}

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/session", rt.getSession).Methods(http.MethodGet)
	api.HandleFunc("/uploads", rt.uploadDataset).Methods(http.MethodPost)
	api.HandleFunc("/predictions", rt.classifyDataset).Methods(http.MethodPost)
	api.HandleFunc("/regressions", rt.regressDataset).Methods(http.MethodPost)
	api.HandleFunc("/records", rt.searchRecords).Methods(http.MethodGet)
	api.HandleFunc("/map", rt.getMap).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", rt.getDashboard).Methods(http.MethodGet)
	api.HandleFunc("/optimizations/latest", rt.getLatestOptimization).Methods(http.MethodGet)
	api.HandleFunc("/optimizations/{method}", rt.runOptimization).Methods(http.MethodPost)
	api.HandleFunc("/export.xlsx", rt.exportWorkbook).Methods(http.MethodGet)

	if rt.cfg.OpenAPIValidation {
		doc, err := OpenAPIDocument()
		if err != nil {
			return nil, err
		}
		validator, err := openAPIValidator(doc)
		if err != nil {
			return nil, err
		}
		api.Use(validator)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", Kind: "not_found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Kind: "method_not_allowed"})
	})

	var h http.Handler = r
	h = backpressureMiddleware(h, rt.cfg.APIMaxInFlight, rt.cfg.InFlightWait())
	h = rateLimitMiddleware(h, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if len(rt.cfg.CORSAllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(rt.cfg.CORSAllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader, "Mcp-Session-Id"}),
			handlers.ExposedHeaders([]string{requestIDHeader, "Content-Disposition", "Mcp-Session-Id"}),
			handlers.MaxAge(600),
		)(h)
	}
	if rt.metrics != nil {
		h = rt.metrics.Middleware(h)
	}
	h = accessLogMiddleware(h)
	h = requestIDMiddleware(h)
	return h, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestIDFromContext(ctx), "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: domain.UserMessage(err), Kind: errorKind(err)})
}

// detached keeps a remote call running when the browser goes away, so the
// session still records its outcome.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

const exportTimeFormat = "20060102-150405"

func exportFilename(snap usecase.Snapshot, now time.Time) string {
	name := "shipments"
	if snap.Dataset != nil {
		name = snap.Dataset.ID
	}
	return name + "-" + now.UTC().Format(exportTimeFormat) + ".xlsx"
}
