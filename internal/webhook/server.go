// Package webhook serves the HTTP surface: a JSON update ingress used
// for load testing, a health endpoint and the metrics endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
)

const maxUpdateBody = 1 << 20

// Dispatcher is the slice of the engine the ingress needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, upd *bot.Update)
}

// Health answers the data-plane freshness questions for /healthz.
type Health interface {
	SnapshotGeneratedAt() time.Time
	LastPollAt() time.Time
}

// Server is the HTTP front. It owns no business state.
type Server struct {
	http     *http.Server
	engine   Dispatcher
	health   Health
	logger   logger.Logger
	registry *metrics.Collector
}

func New(addr string, engine Dispatcher, health Health, log logger.Logger, collector *metrics.Collector) *Server {
	s := &Server{
		engine:   engine,
		health:   health,
		logger:   log,
		registry: collector,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", s.handleWebhook)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var upd bot.Update
	body := http.MaxBytesReader(w, r.Body, maxUpdateBody)
	if err := json.NewDecoder(body).Decode(&upd); err != nil {
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}
	if upd.UserID() == 0 {
		http.Error(w, "update carries no user", http.StatusBadRequest)
		return
	}

	s.engine.Dispatch(r.Context(), &upd)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status              string    `json:"status"`
		SnapshotGeneratedAt time.Time `json:"snapshot_generated_at"`
		LastRealtimePollAt  time.Time `json:"last_realtime_poll_at"`
	}

	h := health{
		Status:              "ok",
		SnapshotGeneratedAt: s.health.SnapshotGeneratedAt(),
		LastRealtimePollAt:  s.health.LastPollAt(),
	}
	code := http.StatusOK
	if h.SnapshotGeneratedAt.IsZero() {
		h.Status = "no snapshot"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.logger.Debug("Health response write failed", "error", err)
	}
}

// requestID tags each request with a fresh id for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), middleware.RequestIDKey, id)))
	})
}
