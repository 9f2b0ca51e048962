// Package chi exposes the question answering pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
	"github.com/kailas-cloud/docqa/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
)

// RunPath is the question answering endpoint.
const RunPath = "/api/v1/hackrx/run"

// maxRequestBytes bounds the JSON body of a run request.
const maxRequestBytes = 1 << 20

const rootHint = "Use POST " + RunPath + " to submit your questions."

// Answerer runs the pipeline for one request.
type Answerer interface {
	Run(ctx context.Context, req answer.Request) ([]string, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	answers       Answerer
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(answers Answerer, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		answers: answers,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		upstreamHandler,
		sentinelHandler(domain.ErrEmptyQuestions, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, ErrorCodeUnsupportedDocument),
		sentinelHandler(domain.ErrFetch, http.StatusBadGateway, ErrorCodeDocumentFetchFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrConfiguration, http.StatusInternalServerError, ErrorCodeConfigurationError),
	}
	return s
}

// Mount registers the routes on r.
func (s *Server) Mount(r gochi.Router) {
	r.Get("/", s.Root)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post(RunPath, s.Run)
}

// Run handles POST /api/v1/hackrx/run.
func (s *Server) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ctx = logger.WithFields(ctx, zap.Int("questions", len(req.Questions)))

	answers, err := s.answers.Run(ctx, answer.Request{
		DocumentRef: req.Documents,
		Questions:   req.Questions,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, RunResponse{Answers: answers})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	message := "Service is running."
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
		message = "Service is degraded."
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Message: message,
		Checks:  checks,
	})
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Msg: rootHint})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if total, used := usage.Snapshot(); used {
		w.Header().Set(metrics.EmbeddingTokensHeader, strconv.Itoa(total))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuestions,
		domain.ErrUnsupportedFormat,
		domain.ErrFetch,
		domain.ErrEmbeddingProviderError,
		domain.ErrUpstream,
		domain.ErrConfiguration,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// upstreamHandler maps generation failures: timeouts to 504, everything else to 502.
func upstreamHandler(w http.ResponseWriter, err error, msg string) bool {
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	if ue.Kind == domain.KindTimeout {
		writeError(w, http.StatusGatewayTimeout, ErrorCodeUpstreamTimeout, msg)
		return true
	}
	writeError(w, http.StatusBadGateway, ErrorCodeUpstreamError, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
