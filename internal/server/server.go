// Package server exposes runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"testpilot/internal/failure"
	"testpilot/internal/logging"
	"testpilot/internal/report"
	"testpilot/internal/runner"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"
)

// maxRequestBytes bounds the size of a run request body.
const maxRequestBytes = 10 << 20

// Runs executes one run per request.
type Runs interface {
	Run(ctx context.Context, req runner.Request) (report.Summary, error)
}

// Server serves the run API, health checks and metrics.
type Server struct {
	addr       string
	runs       Runs
	slots      *semaphore.Weighted
	httpServer *http.Server
}

// New creates a server allowing at most maxConcurrent runs at once.
func New(addr string, runs Runs, maxConcurrent int) *Server {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Server{
		addr:  addr,
		runs:  runs,
		slots: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleRun)
	})
	return router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Server("serving on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// runFailure is the payload of a run that produced no results.
type runFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	RunID   string `json:"runId,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runner.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, runFailure{Error: fmt.Sprintf("invalid run request: %v", err)})
		return
	}

	if err := s.slots.Acquire(r.Context(), 1); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, runFailure{Error: "run cancelled while waiting for a free slot"})
		return
	}
	defer s.slots.Release(1)

	summary, err := s.runs.Run(r.Context(), req)
	if err != nil {
		payload := runFailure{Error: err.Error()}
		var runErr *runner.RunError
		if errors.As(err, &runErr) {
			payload.RunID = runErr.RunID
		}
		logging.ServerError("run %s: %v", payload.RunID, err)
		respondJSON(w, statusFor(err), payload)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func statusFor(err error) int {
	switch {
	case failure.Is(err, failure.InvalidTestCase):
		return http.StatusBadRequest
	case failure.Fatal(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Server("%s %s -> %d (%v)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
