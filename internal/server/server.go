// Package server exposes the memo library over HTTP.
//
// All API routes live under /v1 and speak JSON. Operational endpoints
// (/healthz, /readyz, /metrics) sit at the root. Every API request passes
// through the observability middleware, which records latency metrics and
// opens a trace span.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memocut/memocut/internal/catalog"
	"github.com/memocut/memocut/internal/health"
	"github.com/memocut/memocut/internal/library"
	"github.com/memocut/memocut/internal/observe"
	"github.com/memocut/memocut/internal/segment"
	"github.com/memocut/memocut/internal/silence"
	"github.com/memocut/memocut/internal/skip"
)

// Server routes HTTP requests to the memo library.
type Server struct {
	manager *library.Manager
	store   *catalog.Store
	mux     *http.ServeMux

	// One skip controller per memo, created on first playback query.
	skipMu   sync.Mutex
	sessions map[uuid.UUID]*skip.Controller
}

// New builds the HTTP handler tree. The given health checkers back /readyz.
func New(manager *library.Manager, store *catalog.Store, checkers ...health.Checker) *Server {
	s := &Server{
		manager:  manager,
		store:    store,
		mux:      http.NewServeMux(),
		sessions: make(map[uuid.UUID]*skip.Controller),
	}

	instrument := observe.Middleware(observe.DefaultMetrics())

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/memos", s.handleListMemos)
	api.HandleFunc("POST /v1/memos", s.handleImport)
	api.HandleFunc("GET /v1/memos/{id}", s.handleGetMemo)
	api.HandleFunc("DELETE /v1/memos/{id}", s.handleDeleteMemo)
	api.HandleFunc("POST /v1/memos/{id}/analyze", s.handleAnalyze)
	api.HandleFunc("POST /v1/memos/{id}/trim", s.handleTrim)
	api.HandleFunc("POST /v1/memos/{id}/cut", s.handleCut)
	api.HandleFunc("POST /v1/memos/{id}/strip-silence", s.handleStripSilence)
	api.HandleFunc("GET /v1/memos/{id}/skip-target", s.handleSkipTarget)
	api.HandleFunc("PUT /v1/memos/{id}/settings", s.handlePutSettings)
	api.HandleFunc("DELETE /v1/memos/{id}/settings", s.handleDeleteSettings)
	api.HandleFunc("POST /v1/analyze", s.handleReanalyzeAll)
	s.mux.Handle("/v1/", instrument(api))

	hh := health.New(checkers...)
	hh.Register(s.mux)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// memoView is the JSON representation of a memo plus its analysis state.
type memoView struct {
	catalog.Memo
	SilenceRanges []silence.Range   `json:"silence_ranges,omitempty"`
	Settings      *silence.Settings `json:"settings,omitempty"`
}

type importRequest struct {
	SourcePath string `json:"source_path"`
	Title      string `json:"title"`
}

type rangeRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type editResponse struct {
	Memo            catalog.Memo `json:"memo"`
	RemovedRanges   int          `json:"removed_ranges,omitempty"`
	RemovedDuration float64      `json:"removed_duration,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListMemos(w http.ResponseWriter, r *http.Request) {
	memos, err := s.store.ListMemos(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if memos == nil {
		memos = []catalog.Memo{}
	}
	writeJSON(w, http.StatusOK, memos)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if req.SourcePath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "source_path is required"})
		return
	}

	memo, err := s.manager.Import(r.Context(), req.SourcePath, req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, memo)
}

func (s *Server) handleGetMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	memo, err := s.store.GetMemo(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view := memoView{Memo: *memo}
	if ranges, err := s.store.Ranges(r.Context(), id); err == nil {
		view.SilenceRanges = ranges
	}
	if set, ok, err := s.store.Settings(r.Context(), id); err == nil && ok {
		view.Settings = &set
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteMemo(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.skipMu.Lock()
	delete(s.sessions, id)
	s.skipMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	ranges, err := s.manager.Analyze(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ranges == nil {
		ranges = []silence.Range{}
	}
	writeJSON(w, http.StatusOK, ranges)
}

func (s *Server) handleReanalyzeAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.manager.ReanalyzeAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"duration": time.Since(start).Seconds(),
	})
}

func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	s.handleRangeEdit(w, r, s.manager.Trim)
}

func (s *Server) handleCut(w http.ResponseWriter, r *http.Request) {
	s.handleRangeEdit(w, r, s.manager.Cut)
}

func (s *Server) handleRangeEdit(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID, start, end float64) (*catalog.Memo, error),
) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	memo, err := op(r.Context(), id, req.Start, req.End)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, editResponse{Memo: *memo})
}

func (s *Server) handleStripSilence(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	memo, result, err := s.manager.StripSilence(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, editResponse{
		Memo:            *memo,
		RemovedRanges:   result.RemovedRanges,
		RemovedDuration: result.RemovedDuration,
	})
}

// skipTargetResponse answers a playback position query.
type skipTargetResponse struct {
	Skip   bool    `json:"skip"`
	Target float64 `json:"target,omitempty"`
}

// handleSkipTarget serves the skip-silence playback loop: given the current
// position, it answers whether the play head sits inside a silent range and
// where to seek. Analysis runs lazily on the first query per memo and is
// reused until the memo's audio or settings change.
func (s *Server) handleSkipTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	position, err := strconv.ParseFloat(r.URL.Query().Get("position"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "position query parameter must be a number"})
		return
	}

	memo, err := s.store.GetMemo(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.manager.SettingsFor(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctrl := s.skipController(id)
	ctrl.Reset(memo.Path)
	if err := ctrl.Analyze(r.Context(), memo.Path, settings); err != nil {
		s.writeError(w, err)
		return
	}
	ctrl.SetEnabled(r.Context(), true)

	target, doSkip := ctrl.ShouldSkip(position)
	writeJSON(w, http.StatusOK, skipTargetResponse{Skip: doSkip, Target: target})
}

func (s *Server) skipController(id uuid.UUID) *skip.Controller {
	s.skipMu.Lock()
	defer s.skipMu.Unlock()
	ctrl, ok := s.sessions[id]
	if !ok {
		ctrl = skip.NewController(s.manager.AnalyzePath, nil)
		s.sessions[id] = ctrl
	}
	return ctrl
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	var set silence.Settings
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if err := set.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.store.SetSettings(r.Context(), id, set); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleDeleteSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memoID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMemo(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.ClearSettings(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// memoID parses the {id} path segment, answering 400 for malformed ids.
func (s *Server) memoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid memo id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps library and catalog errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, library.ErrEditInFlight):
		status = http.StatusConflict
	case errors.Is(err, segment.ErrInvalidRange),
		errors.Is(err, silence.ErrInvalidSettings):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}
