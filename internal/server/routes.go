package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackzampolin/distill/internal/ingest"
	"github.com/jackzampolin/distill/internal/llmcall"
	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/schema"
)

// maxRequestBytes bounds extraction request bodies.
const maxRequestBytes = 48 << 20 // 48 MiB

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("POST /analyze-schema", s.handleAnalyzeSchema)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /calls", s.handleCalls)
}

// ExtractRequest is the JSON body for POST /extract.
type ExtractRequest struct {
	Document string          `json:"document"`
	Schema   json.RawMessage `json:"schema"`
}

// handleExtract runs the extraction pipeline for one document/schema pair.
// It accepts either a JSON body or a multipart form with "document" and
// "schema" file parts.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	document, schemaRaw, err := readExtractRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	eng, err := s.newEngine()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	start := time.Now()
	res, err := eng.Extract(r.Context(), document, schemaRaw)
	if err != nil {
		// Extract returns an error only for unusable schemas.
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.logger.Info("extraction request served",
		"strategy", res.Strategy,
		"state", res.State,
		"duration", time.Since(start).Round(time.Millisecond))

	status := http.StatusOK
	if res.Failed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// readExtractRequest pulls document text and schema bytes out of either a
// JSON or a multipart body.
func readExtractRequest(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return readMultipartExtract(r)
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if req.Document == "" {
		return "", nil, errors.New("document is required")
	}
	if len(req.Schema) == 0 {
		return "", nil, errors.New("schema is required")
	}
	return req.Document, req.Schema, nil
}

func readMultipartExtract(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxRequestBytes); err != nil {
		return "", nil, fmt.Errorf("invalid multipart body: %w", err)
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		return "", nil, errors.New("document file part is required")
	}
	defer file.Close()
	document, err := ingest.Read(file, header.Filename)
	if err != nil {
		return "", nil, err
	}

	var schemaRaw []byte
	if sf, _, err := r.FormFile("schema"); err == nil {
		defer sf.Close()
		schemaRaw, err = io.ReadAll(sf)
		if err != nil {
			return "", nil, fmt.Errorf("read schema part: %w", err)
		}
	} else if v := r.FormValue("schema"); v != "" {
		schemaRaw = []byte(v)
	}
	if len(schemaRaw) == 0 {
		return "", nil, errors.New("schema part is required")
	}
	return document, schemaRaw, nil
}

// AnalyzeSchemaRequest is the JSON body for POST /analyze-schema.
type AnalyzeSchemaRequest struct {
	Schema json.RawMessage `json:"schema"`
}

// AnalyzeSchemaResponse reports complexity metrics and the strategy the
// engine would choose, without issuing any LLM calls.
type AnalyzeSchemaResponse struct {
	Metrics  schema.ComplexityMetrics `json:"metrics"`
	Decision schema.StrategyDecision  `json:"decision"`
}

func (s *Server) handleAnalyzeSchema(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req AnalyzeSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	if len(req.Schema) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("schema is required"))
		return
	}

	eng, err := s.newEngine()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	_, metrics, decision, err := eng.AnalyzeSchema(req.Schema)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeSchemaResponse{Metrics: metrics, Decision: decision})
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string                                 `json:"status"`
	Providers []string                               `json:"providers"`
	Limiters  map[string]providers.RateLimiterStatus `json:"limiters,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := s.registry.List()
	resp := HealthResponse{Status: "ok", Providers: names}
	if len(names) == 0 {
		resp.Status = "degraded"
	}

	for _, name := range names {
		if limiter := s.registry.Limiter(name); limiter != nil {
			if resp.Limiters == nil {
				resp.Limiters = map[string]providers.RateLimiterStatus{}
			}
			resp.Limiters[name] = limiter.Status()
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// CallsResponse is the response for GET /calls.
type CallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Stats llmcall.Stats  `json:"stats"`
}

// handleCalls lists recorded LLM calls, filterable by request_id, stage,
// provider, success and limit query parameters.
func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := llmcall.QueryFilter{
		RequestID: q.Get("request_id"),
		Stage:     q.Get("stage"),
		Provider:  q.Get("provider"),
	}
	if v := q.Get("success"); v != "" {
		ok, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid success filter %q", v))
			return
		}
		filter.Success = &ok
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		filter.Limit = n
	}

	calls := s.callStore.List(filter)
	if calls == nil {
		calls = []llmcall.Call{}
	}
	writeJSON(w, http.StatusOK, CallsResponse{Calls: calls, Stats: s.callStore.Stats()})
}

// ErrorResponse is the JSON shape for error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
