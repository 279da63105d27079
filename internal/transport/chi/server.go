// Package chi exposes the search core over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	logpkg "github.com/lgoty/benefitsearch/internal/logger"
	assistantuc "github.com/lgoty/benefitsearch/internal/usecase/assistant"
	healthuc "github.com/lgoty/benefitsearch/internal/usecase/health"
	searchuc "github.com/lgoty/benefitsearch/internal/usecase/search"
)

// Request headers carrying the caller's identity. Both are optional.
const (
	HeaderUserID     = "X-User-ID"
	HeaderUserRegion = "X-User-Region"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Searcher runs searches and reads records.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Result, error)
	Details(ctx context.Context, refs []domcat.Ref) ([]domcat.Record, error)
	Recent(ctx context.Context, userID string) ([]query.Recent, error)
}

// ContextBuilder selects catalog snippets for the chat assistant.
type ContextBuilder interface {
	Context(ctx context.Context, text string, n int) []string
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	search        Searcher
	assistant     ContextBuilder
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, assistant ContextBuilder, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:    search,
		assistant: assistant,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, codeEmptyQuery),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrParserProviderError, http.StatusBadGateway, codeParserProviderError),
		sentinelHandler(domain.ErrStoreNotReady, http.StatusServiceUnavailable, codeStoreNotReady),
	}
	return s
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.search.Search(r.Context(), searchuc.Request{
		Query:      req.Query,
		UserID:     strings.TrimSpace(r.Header.Get(HeaderUserID)),
		UserRegion: strings.TrimSpace(r.Header.Get(HeaderUserRegion)),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResultToResponse(res))
}

// Details handles POST /search/details.
func (s *Server) Details(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if !s.decode(w, r, &req) {
		return
	}

	// Items with an unknown type or id are skipped, the rest are still resolved.
	refs := make([]domcat.Ref, 0, len(req.Items))
	for _, it := range req.Items {
		kind, err := domcat.ParseKind(it.Type)
		if err != nil {
			continue
		}
		ref, err := domcat.NewRef(kind, it.ID)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}

	records, err := s.search.Details(r.Context(), refs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, recordToResponse(rec, nil))
	}
	writeJSON(w, http.StatusOK, items)
}

// Recent handles GET /search/recent.
func (s *Server) Recent(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, HeaderUserID+" header is required")
		return
	}

	items, err := s.search.Recent(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := recentResponse{Items: make([]recentItem, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, recentItem{Query: it.Query, Intent: string(it.Intent), At: it.At})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AssistantContext handles POST /assistant/context.
func (s *Server) AssistantContext(w http.ResponseWriter, r *http.Request) {
	var req assistantContextRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "message is required")
		return
	}
	limit := assistantuc.DefaultSnippets
	if req.Limit != nil {
		if *req.Limit < 1 || *req.Limit > 10 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be between 1 and 10")
			return
		}
		limit = *req.Limit
	}

	snippets := s.assistant.Context(r.Context(), req.Message, limit)
	if snippets == nil {
		snippets = []string{}
	}
	writeJSON(w, http.StatusOK, assistantContextResponse{
		Snippets: snippets,
		Context:  assistantuc.RenderContext(snippets),
	})
}

// ExtractSearch handles POST /assistant/extract-search.
func (s *Server) ExtractSearch(w http.ResponseWriter, r *http.Request) {
	var req extractSearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	cleaned, q, ok := assistantuc.ExtractSearchTag(req.Response)
	resp := extractSearchResponse{Response: cleaned}
	if ok {
		resp.SearchQuery = &q
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		Status:         string(report.Status),
		Checks:         checks,
		VectorStore:    report.VectorState,
		Vectors:        report.Vectors,
		IndexedEntries: report.IndexedEntries,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidRequest,
		domain.ErrNotFound,
		domain.ErrEmbeddingProviderError,
		domain.ErrParserProviderError,
		domain.ErrStoreNotReady,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logpkg.FromContext(r.Context()).Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
