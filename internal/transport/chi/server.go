// Package chi exposes the retrieval API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/contextdoc"
	healthuc "github.com/arcware-ai/intentq/internal/usecase/health"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned to API callers.
const (
	CodeBadRequest     = "bad_request"
	CodeDomainNotFound = "domain_not_found"
	CodeInternalError  = "internal_error"
)

// Retriever answers natural-language queries for one domain.
type Retriever interface {
	Retrieve(ctx context.Context, domainName, queryText, strategy string) ([]contextdoc.Document, error)
}

// Reloader replaces template generations from disk.
type Reloader interface {
	DomainName() string
	Reload(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the retrieval API.
type Server struct {
	retriever     Retriever
	reloaders     []Reloader
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(retriever Retriever, reloaders []Reloader, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		retriever: retriever,
		reloaders: reloaders,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDomainNotFound, http.StatusNotFound, CodeDomainNotFound),
		sentinelHandler(domain.ErrUnknownStrategy, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrTemplateSchema, http.StatusUnprocessableEntity, CodeBadRequest),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeInternalError),
	}
	return s
}

// Register mounts the API routes.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/retrieve", s.handleRetrieve)
	r.Post("/v1/admin/reload", s.handleReload)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type retrieveRequest struct {
	Domain   string `json:"domain"`
	Query    string `json:"query"`
	Strategy string `json:"strategy,omitempty"`
}

type retrieveResponse struct {
	Documents []contextdoc.Document `json:"documents"`
}

// handleRetrieve handles POST /v1/retrieve.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Domain) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "domain is required")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "query is required")
		return
	}

	docs, err := s.retriever.Retrieve(r.Context(), req.Domain, req.Query, req.Strategy)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Documents: docs})
}

type reloadRequest struct {
	Domain string `json:"domain,omitempty"` // empty reloads every domain
}

type reloadResponse struct {
	Reloaded []string `json:"reloaded"`
}

// handleReload handles POST /v1/admin/reload. A failed reload keeps the
// previous template generation serving.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	var reloaded []string
	matched := false
	for _, rd := range s.reloaders {
		if req.Domain != "" && rd.DomainName() != req.Domain {
			continue
		}
		matched = true
		if err := rd.Reload(r.Context()); err != nil {
			s.logger.Error("template reload failed",
				zap.String("domain", rd.DomainName()), zap.Error(err))
			s.handleDomainError(w, err)
			return
		}
		reloaded = append(reloaded, rd.DomainName())
	}
	if !matched {
		writeError(w, http.StatusNotFound, CodeDomainNotFound, "unknown domain "+req.Domain)
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{Reloaded: reloaded})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := err.Error()
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
