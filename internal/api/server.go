// Package api exposes the HTTP status interface for the crawler service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpeptides/litcrawler/internal/checkpoint"
	"github.com/openpeptides/litcrawler/internal/metrics"
)

// Server wires HTTP handlers to the checkpoint tracker. It is read-only:
// crawls are driven by the CLI, the server only reports on them.
type Server struct {
	router  chi.Router
	tracker *checkpoint.Tracker
	terms   []string
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(tracker *checkpoint.Tracker, terms []string, logger *zap.Logger) *Server {
	s := &Server{
		tracker: tracker,
		terms:   terms,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/progress", s.progress)
		r.Get("/progress/{term}", s.termProgress)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type progressResponse struct {
	Terms map[string]termProgressResponse `json:"terms"`
}

type termProgressResponse struct {
	LastPage int `json:"last_page"`
	NextPage int `json:"next_page"`
}

// progress reports the last completed page per configured term. Terms that
// have never completed a page report last_page 0.
func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	resp := progressResponse{Terms: make(map[string]termProgressResponse, len(s.terms))}
	for _, term := range s.terms {
		resp.Terms[term] = termProgressResponse{
			LastPage: s.tracker.LastPage(term),
			NextPage: s.tracker.NextPage(term),
		}
	}
	// Also surface checkpointed terms no longer in the configured list.
	for term, page := range s.tracker.Snapshot() {
		if _, ok := resp.Terms[term]; !ok {
			resp.Terms[term] = termProgressResponse{LastPage: page, NextPage: page + 1}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) termProgress(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	last := s.tracker.LastPage(term)
	if last == 0 && !s.configured(term) {
		writeError(w, http.StatusNotFound, "term not tracked")
		return
	}
	writeJSON(w, http.StatusOK, termProgressResponse{
		LastPage: last,
		NextPage: s.tracker.NextPage(term),
	})
}

func (s *Server) configured(term string) bool {
	for _, t := range s.terms {
		if t == term {
			return true
		}
	}
	return false
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
