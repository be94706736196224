// Package server exposes sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/logger"
	"document-qa/internal/metrics"
	"document-qa/internal/models"
	"document-qa/internal/rag"
	"document-qa/internal/session"
)

// SessionFactory creates an empty session.
type SessionFactory func() *session.Session

type Server struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	newSession SessionFactory
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	maxUpload  int64
	mux        *http.ServeMux
	log        zerolog.Logger
}

// New wires the routes. gatherer backs /metrics; maxUploadMB bounds uploads.
func New(newSession SessionFactory, m *metrics.Metrics, gatherer prometheus.Gatherer, maxUploadMB int) *Server {
	s := &Server{
		sessions:   make(map[string]*session.Session),
		newSession: newSession,
		metrics:    m,
		gatherer:   gatherer,
		maxUpload:  int64(maxUploadMB) << 20,
		mux:        http.NewServeMux(),
		log:        logger.Component("server"),
	}

	s.mux.HandleFunc("POST /sessions", s.handleCreate)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGet)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	s.mux.HandleFunc("PUT /sessions/{id}/range", s.handleRange)
	s.mux.HandleFunc("POST /sessions/{id}/answer", s.handleAnswer)
	s.mux.HandleFunc("POST /sessions/{id}/welcome", s.handleWelcome)
	s.mux.HandleFunc("GET /sessions/{id}/history", s.handleHistory)
	s.mux.HandleFunc("DELETE /sessions/{id}/history", s.handleClearHistory)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("duration", time.Since(start)).Msg("Request handled")
}

// ListenAndServe serves on addr until ctx is cancelled, then closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeAll()
	return err
}

type createResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("multipart field \"file\" is required: %w", err))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	sess := s.newSession()
	if err := sess.Ingest(r.Context(), raw, header.Filename); err != nil {
		switch {
		case errors.Is(err, models.ErrExtractionFailure), errors.Is(err, models.ErrEmptyCorpus):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		_ = sess.Close()
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()

	info, _ := sess.Info()
	writeJSON(w, http.StatusCreated, createResponse{ID: id, Filename: info.Filename, Pages: info.Pages})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	info, err := sess.Info()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("session %s not found", id))
		return
	}
	if err := sess.Close(); err != nil {
		s.log.Warn().Err(err).Str("session", id).Msg("Failed to close session")
	}
	s.metrics.SessionClosed()
	w.WriteHeader(http.StatusNoContent)
}

// rangeRequest selects 1-based pages; Full wins over Start/End.
type rangeRequest struct {
	Full  bool `json:"full"`
	Start int  `json:"start"`
	End   int  `json:"end"`
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if req.Full {
		sess.SetFullRange()
	} else if err := sess.SetRange1Based(req.Start, req.End); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, err := sess.Info()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type answerRequest struct {
	Query string `json:"query"`
}

type answerResponse struct {
	models.Answer
	Message string `json:"message"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	ans, err := sess.Ask(r.Context(), req.Query)
	if err != nil {
		var lmErr *models.LanguageModelError
		switch {
		case errors.Is(err, models.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, session.ErrNoDocument):
			writeError(w, http.StatusConflict, err)
		case errors.As(err, &lmErr):
			writeError(w, http.StatusBadGateway, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: ans, Message: rag.FormatMessage(ans)})
}

type welcomeRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req welcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	msg, err := sess.Welcome(req.Name)
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, session.ErrEmptyName) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.History())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("session %s not found", id))
	}
	return sess, ok
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			s.log.Warn().Err(err).Str("session", id).Msg("Failed to close session")
		}
		s.metrics.SessionClosed()
		delete(s.sessions, id)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
