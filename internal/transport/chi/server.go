// Package chi is the HTTP surface. Handlers stay thin: decode, delegate,
// encode.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/andar-cloud/ragkit/internal/domain"
	"github.com/andar-cloud/ragkit/internal/metrics"
)

// memoryTruncateLimit bounds how much of an answer is written back into the
// user's memory.
const memoryTruncateLimit = 500

// Ingester rebuilds the document index.
type Ingester interface {
	Build(ctx context.Context) (int, error)
}

// Asker answers one question for one user.
type Asker interface {
	Answer(ctx context.Context, query, userID string) (string, error)
}

// Memorizer stores one memory for one user.
type Memorizer interface {
	Add(ctx context.Context, userID, text string) (string, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the handlers for the REST API.
type Server struct {
	ingester      Ingester
	asker         Asker
	memories      Memorizer
	health        domain.HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ingester Ingester, asker Asker, memories Memorizer, health domain.HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		ingester: ingester,
		asker:    asker,
		memories: memories,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, "collection_not_found"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusConflict, "dimension_mismatch"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, "generation_failed"),
	}
	return s
}

// Router builds the chi router with the full middleware chain. ratePerMinute
// <= 0 disables rate limiting.
func (s *Server) Router(ratePerMinute float64) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.Healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimitMiddleware(ratePerMinute, s.logger))
		r.Post("/ingest", s.Ingest)
		r.Post("/ask", s.Ask)
		r.Post("/memory", s.AddMemory)
	})

	return r
}

// Ingest handles POST /api/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	indexed, err := s.ingester.Build(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"indexed": indexed})
}

type askRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask handles POST /api/ask. When a user id is present, the question is
// logged into memory before answering and the answer (truncated) after, so
// follow-up questions can recall the exchange.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	if req.UserID != "" {
		s.logTurn(r.Context(), req.UserID, "user: "+req.Query)
	}

	answer, err := s.asker.Answer(r.Context(), req.Query, req.UserID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if req.UserID != "" {
		s.logTurn(r.Context(), req.UserID, "assistant: "+truncate(answer, memoryTruncateLimit))
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

type memoryRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// AddMemory handles POST /api/memory.
func (s *Server) AddMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "user_id and text are required")
		return
	}

	id, err := s.memories.Add(r.Context(), req.UserID, req.Text)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logTurn writes one conversation turn into memory. A failed write degrades
// recall but must not fail the question itself.
func (s *Server) logTurn(ctx context.Context, userID, text string) {
	if _, err := s.memories.Add(ctx, userID, text); err != nil {
		s.logger.Warn("failed to log conversation turn",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrNotFound,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationFailed,
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

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
