// Package chi serves the compiler and search engine over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/compiler"
	"github.com/roach88/nestq/internal/engine"
	"github.com/roach88/nestq/internal/ir"
	logpkg "github.com/roach88/nestq/internal/logger"
	"github.com/roach88/nestq/internal/queryir"
	"github.com/roach88/nestq/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	// Indexed is set when a batch failed after some blocks were committed.
	Indexed int `json:"indexed,omitempty"`
}

// CompileResponse is returned by POST /_compile.
type CompileResponse struct {
	InvocationID string          `json:"invocation_id"`
	Explain      string          `json:"explain"`
	Query        json.RawMessage `json:"query,omitempty"`
	Named        []string        `json:"named,omitempty"`
	Size         int             `json:"size,omitempty"`
}

// IndexResponse is returned by POST /_index.
type IndexResponse struct {
	Indexed int `json:"indexed"`
}

// Server exposes compile, index and search endpoints.
type Server struct {
	parser  *compiler.Parser
	exec    *engine.Executor
	indexer *engine.Indexer
	store   *store.Store
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	parser *compiler.Parser,
	exec *engine.Executor,
	indexer *engine.Indexer,
	st *store.Store,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{parser: parser, exec: exec, indexer: indexer, store: st, logger: logger}
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/_compile", s.Compile)
	r.Post("/_search", s.Search)
	r.Post("/_index", s.Index)
	r.Delete("/_doc/{id}", s.DeleteDocument)
	r.Get("/_stats", s.Stats)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Compile handles POST /_compile.
func (s *Server) Compile(w http.ResponseWriter, r *http.Request) {
	pq, ok := s.parse(w, r)
	if !ok {
		return
	}

	resp := CompileResponse{
		InvocationID: pq.InvocationID,
		Explain:      queryir.Explain(pq.Query),
		Named:        pq.NamedOrder,
		Size:         pq.Size,
	}
	if pq.Query != nil {
		d, err := queryir.Describe(pq.Query)
		if err == nil {
			resp.Query, err = ir.MarshalCanonical(d)
		}
		if err != nil {
			s.handleError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles POST /_search. The size query parameter overrides the
// request body's size.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "size must be a non-negative integer")
			return
		}
		size = n
	}

	pq, ok := s.parse(w, r)
	if !ok {
		return
	}

	res, err := s.exec.Search(r.Context(), pq, size)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Index handles POST /_index. The body is a JSON array of
// {"_id": ..., "_source": {...}} documents.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	docs, err := engine.DecodeDocuments(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	n, err := s.indexer.IndexAll(r.Context(), docs)
	if err != nil && n > 0 {
		logpkg.FromContext(r.Context()).Error("index batch partially written",
			zap.Int("indexed", n), zap.Int("total", len(docs)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    "PARTIAL_INDEX",
			Message: fmt.Sprintf("indexed %d of %d document(s) before failing", n, len(docs)),
			Indexed: n,
		})
		return
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{Indexed: n})
}

// DeleteDocument handles DELETE /_doc/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found, err := s.store.DeleteBlock(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "document "+strconv.Quote(id)+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /_stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		logpkg.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) parse(w http.ResponseWriter, r *http.Request) (*compiler.ParsedQuery, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return nil, false
	}
	pq, err := s.parser.Parse(body, "request")
	if err != nil {
		s.handleError(w, r, err)
		return nil, false
	}
	return pq, true
}

// handleError maps compile, runtime and indexing errors to responses.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())

	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		log.Debug("compile error", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    string(ce.Code),
			Message: err.Error(),
			Field:   ce.Field,
		})
		return
	}

	if errors.Is(err, engine.ErrInvalidDocument) {
		log.Debug("invalid document", zap.Error(err))
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT", err.Error())
		return
	}

	var re *engine.RuntimeError
	if errors.As(err, &re) {
		log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, string(re.Code), re.Message)
		return
	}

	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
