package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"omnidigest/internal/app"
	"omnidigest/internal/engine"
	"omnidigest/internal/ratelimit"
	"omnidigest/internal/staging"
	"omnidigest/internal/util"
	"omnidigest/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Limiter caps summarize requests per client IP. Nil disables limiting.
	Limiter *ratelimit.FixedWindowLimiter
}

// Server exposes the HTTP endpoints of the summarization service.
type Server struct {
	app     *app.App
	limiter *ratelimit.FixedWindowLimiter
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	s := &Server{
		app:     cfg.App,
		limiter: cfg.Limiter,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the shared middleware.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("omnidigest", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/summaries/text", s.handleSummarizeText)
	s.mux.HandleFunc("/api/summaries/file", s.handleSummarizeFile)
	s.mux.HandleFunc("/api/records", s.handleRecords)
	s.mux.HandleFunc("/api/records/", s.handleRecordByID)
	s.mux.HandleFunc("/api/analytics", s.handleAnalytics)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// summarizeResponse is the engine result plus the length category that was
// resolved from the requested ratio.
type summarizeResponse struct {
	domain.SummarizeResult
	SummaryLengthCategory int `json:"summaryLengthCategory"`
}

type summarizeTextRequest struct {
	Text  string  `json:"text"`
	Ratio float64 `json:"ratio"`
}

func (s *Server) handleSummarizeText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, "summarize_text") {
		return
	}
	var req summarizeTextRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", kindValidation)
		return
	}
	result, category, err := s.app.SummarizeText(req.Text, req.Ratio)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{SummarizeResult: result, SummaryLengthCategory: category})
}

func (s *Server) handleSummarizeFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, "summarize_file") {
		return
	}
	file, header, ok := s.uploadForm(w, r)
	if !ok {
		return
	}
	defer file.Close()
	ratio, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("ratio")), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidRatio.Error(), kindValidation)
		return
	}
	result, category, err := s.app.SummarizeFile(header.Filename, file, header.Size, ratio)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{SummarizeResult: result, SummaryLengthCategory: category})
}

// uploadForm parses a multipart upload carrying a "file" part. The body cap
// leaves slack above the per-file ceiling for multipart framing; the exact
// ceiling is enforced downstream against the part size.
func (s *Server) uploadForm(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if max := s.app.MaxUploadBytes(); max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "file exceeds the maximum allowed size", kindValidation)
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid form data", kindValidation)
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)", kindValidation)
		return nil, nil, false
	}
	return file, header, true
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRecord(w, r)
	case http.MethodGet:
		s.handleListRecords(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec domain.SummaryRecord
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", kindValidation)
		return
	}
	created, err := s.app.CreateRecord(rec)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	records, err := s.app.RecordsByOwner(owner)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no summaries found for this user", kindNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"count": len(records),
	})
}

func (s *Server) handleRecordByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/records/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" || strings.Contains(action, "/") {
		http.NotFound(w, r)
		return
	}
	switch action {
	case "file":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleAttachFile(w, r, id)
	case "feedback":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w)
			return
		}
		s.handleFeedback(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleAttachFile(w http.ResponseWriter, r *http.Request, id string) {
	file, header, ok := s.uploadForm(w, r)
	if !ok {
		return
	}
	defer file.Close()
	mediaType := header.Header.Get("Content-Type")
	updated, err := s.app.AttachFile(id, header.Filename, file, header.Size, mediaType)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type feedbackRequest struct {
	Rating *int `json:"rating"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, id string) {
	var req feedbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", kindValidation)
		return
	}
	if req.Rating == nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidRating.Error(), kindValidation)
		return
	}
	updated, err := s.app.UpdateFeedback(id, *req.Rating)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	report, err := s.app.Analytics()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, route string) bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.Allow(route, util.ClientIP(r)) {
		return true
	}
	writeError(w, http.StatusTooManyRequests, "too many requests, please retry later", kindValidation)
	return false
}

const (
	kindValidation  = "validation"
	kindNotFound    = "not_found"
	kindUpstream    = "upstream"
	kindUnavailable = "unavailable"
	kindInternal    = "internal"
)

// writeAppError maps application errors onto the HTTP error taxonomy. An
// engine error response is passed through with its original status and body.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	var upstream *engine.UpstreamError
	switch {
	case errors.As(err, &upstream):
		slog.Warn("engine error response", "status", upstream.Status)
		writeUpstream(w, upstream)
	case errors.Is(err, engine.ErrUnavailable):
		slog.Warn("engine unreachable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "summarization engine unavailable", kindUnavailable)
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "summary not found", kindNotFound)
	case errors.Is(err, app.ErrMissingInput),
		errors.Is(err, app.ErrInvalidRatio),
		errors.Is(err, app.ErrMissingRequiredField),
		errors.Is(err, app.ErrInvalidInputMedium),
		errors.Is(err, app.ErrInvalidRating),
		errors.Is(err, staging.ErrUnsupportedType),
		errors.Is(err, staging.ErrTooLarge):
		writeError(w, http.StatusBadRequest, err.Error(), kindValidation)
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error", kindInternal)
	}
}

// writeUpstream forwards an engine error response unchanged: same status,
// same content type, same body bytes.
func writeUpstream(w http.ResponseWriter, upstream *engine.UpstreamError) {
	contentType := upstream.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Error-Kind", kindUpstream)
	w.WriteHeader(upstream.Status)
	_, _ = w.Write(upstream.Body)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", kindValidation)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
