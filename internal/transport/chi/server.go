package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/geosuggest/internal/logger"
	"github.com/kailas-cloud/geosuggest/internal/metrics"
	healthuc "github.com/kailas-cloud/geosuggest/internal/usecase/health"
	queryuc "github.com/kailas-cloud/geosuggest/internal/usecase/query"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest         = "bad_request"
	codeUnauthorized       = "unauthorized"
	codeNotFound           = "not_found"
	codeLayerNotFound      = "layer_not_found"
	codeTimeout            = "query_timeout"
	codeCancelled          = "query_cancelled"
	codeSearchUnavailable  = "search_unavailable"
	codeGeocoderError      = "geocoder_error"
	codeInternalError      = "internal_error"
	codeWarmupInProgress   = "warmup_in_progress"
	codeStreamNotSupported = "stream_not_supported"
)

// Engine is the search surface served over HTTP.
type Engine interface {
	Suggest(ctx context.Context, m mode.Mode, text string) ([]result.Suggestion, error)
	Search(ctx context.Context, text string) (result.Item, error)
	Select(ctx context.Context, s result.Suggestion) (queryuc.Selection, error)
	Statistics() queryuc.Statistics
	Warm(ctx context.Context) replica.Snapshot
	Snapshot() replica.Snapshot
	Subscribe() (<-chan replica.ProgressEvent, func())
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type suggestResponse struct {
	Query       string              `json:"query"`
	Mode        mode.Mode           `json:"mode"`
	Suggestions []result.Suggestion `json:"suggestions"`
}

type searchResponse struct {
	Layer      string            `json:"layer"`
	Field      string            `json:"field"`
	FeatureID  string            `json:"feature_id"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Geometry   *geo.Geometry     `json:"geometry,omitempty"`
}

// Server serves the suggestion API.
type Server struct {
	engine        Engine
	health        HealthChecker
	logger        *zap.Logger
	baseCtx       context.Context
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. Warm-ups started over HTTP run under baseCtx.
func NewServer(baseCtx context.Context, engine Engine, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:  engine,
		health:  health,
		logger:  logger,
		baseCtx: baseCtx,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrLayerNotFound, http.StatusNotFound, codeLayerNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrQueryTimeout, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(domain.ErrQueryCancelled, http.StatusRequestTimeout, codeCancelled),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusServiceUnavailable, codeSearchUnavailable),
		sentinelHandler(domain.ErrDataSourceUnavailable, http.StatusServiceUnavailable, codeSearchUnavailable),
		sentinelHandler(domain.ErrGeocodeServiceUnavailable, http.StatusBadGateway, codeGeocoderError),
	}
	return s
}

// Router mounts the API with the standard middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/suggest", s.Suggest)
	r.Get("/search", s.Search)
	r.Post("/select", s.Select)
	r.Get("/stats", s.Stats)
	r.Post("/warmup", s.Warmup)
	r.Get("/warmup", s.WarmupStatus)
	r.Get("/warmup/progress", s.WarmupProgress)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Suggest handles GET /suggest?q=&mode=.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	m, ok := mode.Parse(r.URL.Query().Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "mode must be \"asset\" or \"location\"")
		return
	}

	sugs, err := s.engine.Suggest(r.Context(), m, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if sugs == nil {
		sugs = []result.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestResponse{Query: q, Mode: m, Suggestions: sugs})
}

// Search handles GET /search?q=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "q is required")
		return
	}

	it, err := s.engine.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := searchResponse{
		Layer:     it.Layer,
		Field:     it.Field,
		FeatureID: it.FeatureID,
		Text:      it.DisplayText,
		Geometry:  it.Geometry(),
	}
	if it.Feature != nil {
		resp.Attributes = it.Feature.Attributes()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Select handles POST /select with a suggestion body.
func (s *Server) Select(w http.ResponseWriter, r *http.Request) {
	var sug result.Suggestion
	if err := json.NewDecoder(r.Body).Decode(&sug); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if sug.Mode == "" {
		sug.Mode = mode.Asset
	}
	if !sug.Mode.IsValid() {
		writeError(w, http.StatusBadRequest, codeBadRequest, "mode must be \"asset\" or \"location\"")
		return
	}
	r = r.WithContext(logpkg.With(r.Context(),
		zap.String("select_mode", string(sug.Mode)),
		zap.String("layer", sug.Layer),
		zap.String("feature_id", sug.FeatureID),
	))

	sel, err := s.engine.Select(r.Context(), sug)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Statistics())
}

// Warmup handles POST /warmup. The rebuild runs in the background; progress is on /warmup/progress.
func (s *Server) Warmup(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	if snap.State == replica.Warming {
		writeError(w, http.StatusConflict, codeWarmupInProgress, "warm-up already in progress")
		return
	}

	go func() {
		final := s.engine.Warm(s.baseCtx)
		s.logger.Info("Warm-up finished",
			zap.String("state", string(final.State)),
			zap.Int("succeeded", final.Succeeded),
			zap.Int("failed", final.Failed),
		)
	}()

	writeJSON(w, http.StatusAccepted, snap)
}

// WarmupStatus handles GET /warmup.
func (s *Server) WarmupStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrLayerNotFound,
		domain.ErrNotFound,
		domain.ErrQueryTimeout,
		domain.ErrQueryCancelled,
		domain.ErrSearchUnavailable,
		domain.ErrDataSourceUnavailable,
		domain.ErrGeocodeServiceUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	err = domain.Classify(err)
	if !domain.IsCancelled(err) {
		log.Warn("Domain error", zap.Error(err))
	}
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
