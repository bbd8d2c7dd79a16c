// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/okian/covid19india/internal/adapters/http/ratelimit"
	repository "github.com/okian/covid19india/internal/adapters/repository"
	"github.com/okian/covid19india/internal/domain/model"
	"github.com/okian/covid19india/pkg/logger"
)

// StateDependencies covers the read-only state endpoints.
type StateDependencies interface {
	ListStates(ctx context.Context) ([]model.State, error)
	GetState(ctx context.Context, stateID int64) (model.State, error)
	StateStats(ctx context.Context, stateID int64) (model.StateStats, error)
}

// DistrictDependencies covers the district endpoints.
type DistrictDependencies interface {
	AddDistrict(ctx context.Context, in model.DistrictInput) (int64, error)
	GetDistrict(ctx context.Context, districtID int64) (model.District, error)
	UpdateDistrict(ctx context.Context, districtID int64, in model.DistrictInput) error
	DeleteDistrict(ctx context.Context, districtID int64) error
	DistrictStateName(ctx context.Context, districtID int64) (model.DistrictDetails, error)
}

// Pinger reports storage reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StateDependencies
	DistrictDependencies
	Pinger
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	metricsHandler   http.Handler
	statsHandler     *StatsHandler
	statesHandler    *StatesHandler
	districtsHandler *DistrictsHandler

	log            logger.Logger
	allowedOrigins []string
	limiter        *ratelimit.Limiter
	extraRoutes    []func(*mux.Router)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAllowedOrigins sets the CORS origins. An empty list allows none.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithRateLimiter enables per-client rate limiting.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithRoutes registers additional routes, e.g. the API docs.
func WithRoutes(fn func(*mux.Router)) Option {
	return func(s *Server) {
		if fn != nil {
			s.extraRoutes = append(s.extraRoutes, fn)
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler(deps)
	s.metricsHandler = NewMetricsHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.statesHandler = NewStatesHandler(deps, s.log)
	s.districtsHandler = NewDistrictsHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	r.HandleFunc("/states/", MetricsMiddleware(s.statesHandler.HandleListStates, "states")).
		Methods(http.MethodGet)
	r.HandleFunc("/states/{"+stateIDVar+"}/", MetricsMiddleware(s.statesHandler.HandleGetState, "state")).
		Methods(http.MethodGet)
	r.HandleFunc("/states/{"+stateIDVar+"}/stats/", MetricsMiddleware(s.statesHandler.HandleStateStats, "state_stats")).
		Methods(http.MethodGet)

	r.HandleFunc("/districts/", MetricsMiddleware(s.districtsHandler.HandleAddDistrict, "districts")).
		Methods(http.MethodPost)
	r.HandleFunc("/districts/{"+districtIDVar+"}/", MetricsMiddleware(s.districtsHandler.HandleGetDistrict, "district")).
		Methods(http.MethodGet)
	r.HandleFunc("/districts/{"+districtIDVar+"}/", MetricsMiddleware(s.districtsHandler.HandleUpdateDistrict, "district")).
		Methods(http.MethodPut)
	r.HandleFunc("/districts/{"+districtIDVar+"}/", MetricsMiddleware(s.districtsHandler.HandleDeleteDistrict, "district")).
		Methods(http.MethodDelete)
	r.HandleFunc("/districts/{"+districtIDVar+"}/details/", MetricsMiddleware(s.districtsHandler.HandleDistrictDetails, "district_details")).
		Methods(http.MethodGet)

	for _, fn := range s.extraRoutes {
		fn(r)
	}

	r.NotFoundHandler = MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, ErrRouteNotFound)
	}, "unmatched")
	r.MethodNotAllowedHandler = MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, ErrMethodNotAllowed)
	}, "unmatched")
}

// Handler builds the router and wraps it in the middleware chain:
// trailing slash, request id, logging, recovery, CORS, rate limit.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)

	var h http.Handler = r
	if s.limiter != nil {
		h = s.limiter.Middleware("/healthz", "/metrics")(h)
	}
	h = cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin", RequestIDHeader},
		ExposedHeaders: []string{"Location", RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         86400,
	}).Handler(h)
	h = Recovery(s.log)(h)
	h = Logging(s.log)(h)
	h = RequestID(h)
	return TrailingSlash(h)
}

// Error codes used in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeInternal         = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeStoreError maps a storage error to 404 or 500. Only 500s are logged.
func writeStoreError(ctx context.Context, log logger.Logger, w http.ResponseWriter, op string, err error) {
	if isNotFound(err) {
		writeError(w, http.StatusNotFound, codeNotFound, err)
		return
	}
	log.Error(ctx, "storage call failed",
		logger.String("op", op),
		logger.String("requestId", RequestIDFromContext(ctx)),
		logger.Error(err),
	)
	writeError(w, http.StatusInternalServerError, codeInternal, err)
}

// isNotFound allows the API to translate upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
