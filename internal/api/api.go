// Package api serves the read-only status surface: JSON endpoints for the
// dashboard, Prometheus metrics and a websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"llm-spot-trader/internal/events"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/tradelog"
	"llm-spot-trader/internal/types"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

type StatusSource interface {
	Status() types.Status
}

// EventSource returns the newest audit events first.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]tradelog.Event, error)
}

type Options struct {
	Events  EventSource
	Bus     *events.Bus
	Metrics *metrics.Registry
}

type Server struct {
	router *mux.Router
	server *http.Server
	status StatusSource
	events EventSource
	bus    *events.Bus
	hub    *Hub
}

func NewServer(listen string, status StatusSource, opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		status: status,
		events: opts.Events,
		bus:    opts.Bus,
		hub:    NewHub(),
	}
	s.routes(opts.Metrics)
	s.server = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(m *metrics.Registry) {
	s.router.Use(requestID)
	s.router.Use(requestLogging)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(jsonContentType)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/events", s.hub.ServeWS)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub and the listener until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	if s.bus != nil {
		go s.hub.Feed(ctx, s.bus)
	}
	logger.Info(ctx, "Status API listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info(ctx, "Shutting down status API")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"running":    s.status.Status().Running,
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(st.Positions),
		"positions": st.Positions,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"samples": st.Samples,
		"markers": st.Markers,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotImplemented, "event store not configured")
		return
	}
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}
	evs, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to read events", err)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	if evs == nil {
		evs = []tradelog.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// websocket upgrades need the raw writer for hijacking
		if r.URL.Path == "/ws/events" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		id, _ := r.Context().Value(requestIDKey{}).(string)
		logger.Debug(r.Context(), "HTTP request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
