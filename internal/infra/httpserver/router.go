package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanwahyu/blobsense/internal/application/dispatch"
	domain "github.com/bryanwahyu/blobsense/internal/domain/analysis"
	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
	"github.com/bryanwahyu/blobsense/internal/infra/storage"
	"github.com/bryanwahyu/blobsense/internal/middleware"
)

// maxEventBody caps webhook payloads, a notification carries one record per object.
const maxEventBody = 1 << 20

// Options are the optional pieces of the HTTP surface. Zero values disable them.
type Options struct {
	WebhookToken string
	CORSOrigins  []string
	Limiter      *middleware.RateLimiter
	Metrics      *middleware.HTTPMetrics
	Gatherer     prometheus.Gatherer
	Checks       map[string]middleware.HealthChecker
	Logger       *slog.Logger

	// ResultsPrefix is where results are written back to the bucket. Notifications under it are ignored.
	ResultsPrefix string
}

type Router struct {
	svc           *dispatch.Service
	resultsPrefix string
	logger        *slog.Logger
}

func NewRouter(svc *dispatch.Service, opts Options) http.Handler {
	r := &Router{svc: svc, resultsPrefix: opts.ResultsPrefix, logger: opts.Logger}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	mux := chi.NewRouter()

	mux.Use(middleware.Logging(r.logger))
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/ready", middleware.HealthHandler(opts.Checks))
	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Group(func(rt chi.Router) {
			if opts.Limiter != nil {
				rt.Use(opts.Limiter.Middleware)
			}
			rt.Use(middleware.BearerToken(opts.WebhookToken))
			rt.Post("/events/storage", r.wrap(r.handleStorageEvent))
			rt.Post("/blobs", r.wrap(r.handleBlob))
		})

		rt.Group(func(rt chi.Router) {
			if len(opts.CORSOrigins) > 0 {
				rt.Use(cors.Handler(cors.Options{
					AllowedOrigins: opts.CORSOrigins,
					AllowedMethods: []string{http.MethodGet, http.MethodOptions},
					AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
					MaxAge:         300,
				}))
			}
			rt.Get("/analyses/latest", r.wrap(r.handleLatest))
			rt.Get("/analyses/{id}", r.wrap(r.handleGet))
			rt.Get("/summary", r.wrap(r.handleSummary))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks errors caused by the caller's input.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		switch {
		case errors.As(err, &br):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, sql.ErrNoRows):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, dispatch.ErrNoRepository):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			r.logger.Error("request failed", "path", req.URL.Path, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/events/storage
// Body: S3 bucket notification. Every created object outside the results prefix is dispatched before answering.
func (r *Router) handleStorageEvent(w http.ResponseWriter, req *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxEventBody))
	if err != nil {
		return badRequest{err}
	}
	objs, err := storage.ParseEvent(body, r.resultsPrefix)
	if err != nil {
		return badRequest{fmt.Errorf("invalid event: %w", err)}
	}

	outcomes := r.svc.HandleAll(req.Context(), objs)
	return writeJSON(w, map[string]any{
		"received": len(objs),
		"outcomes": outcomes,
	})
}

// POST /v1/blobs
// Body: {"name": "photo.jpg", "size": 1234}
func (r *Router) handleBlob(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxEventBody)).Decode(&body); err != nil {
		return badRequest{err}
	}
	if err := middleware.ValidateObjectName(body.Name); err != nil {
		return badRequest{err}
	}
	if body.Size < 0 {
		return badRequest{fmt.Errorf("size cannot be negative")}
	}

	out := r.svc.Handle(req.Context(), blobs.Object{Name: body.Name, Size: body.Size})
	return writeJSON(w, out)
}

// GET /v1/analyses/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Record{}
	}
	return writeJSON(w, list)
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	rec, err := r.svc.Get(req.Context(), domain.RecordID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, rec)
}

// GET /v1/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.svc.Summary(req.Context(), middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, summary)
}
