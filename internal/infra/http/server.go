// File: internal/infra/http/server.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vpn-subscription-billing/internal/config"
	"vpn-subscription-billing/internal/infra/logging"
	"vpn-subscription-billing/internal/infra/providers"
	"vpn-subscription-billing/internal/usecase"
)

type Server struct {
	cfg      *config.HTTPConfig
	registry *providers.Registry
	charges  usecase.ChargeUseCase
	fulfill  usecase.FulfillmentUseCase
	stats    usecase.StatsUseCase
	limiter  *rate.Limiter
	log      *zerolog.Logger
	server   *http.Server
}

func NewServer(
	cfg *config.HTTPConfig,
	registry *providers.Registry,
	charges usecase.ChargeUseCase,
	fulfill usecase.FulfillmentUseCase,
	stats usecase.StatsUseCase,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		charges:  charges,
		fulfill:  fulfill,
		stats:    stats,
		limiter:  rate.NewLimiter(rate.Limit(cfg.WebhookRate), cfg.WebhookBurst),
		log:      logger,
	}
}

// Handler assembles the full route tree. Split from Start so tests can mount
// it on httptest servers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.traceID)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/webhook", func(r chi.Router) {
		r.Use(s.rateLimit)
		// Providers disagree even on the HTTP method of their callbacks.
		r.Post("/{provider}", s.handleWebhook)
		r.Get("/{provider}", s.handleWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/payments", s.handleCreatePayment)
		r.Get("/stats/revenue", s.handleRevenueStats)
	})

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// traceID tags every request with a correlation id so log lines from the
// webhook and API paths can be stitched together across retries.
func (s *Server) traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Trace-Id", id)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), id)))
	})
}

// rateLimit sheds load when providers retry-storm; within limits every
// request proceeds so acknowledgments stay provider-exact.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware provides simple Bearer token authentication for the charge API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken == "" {
			s.log.Error().Msg("api token is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		if tokenParts[1] != s.cfg.APIToken {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
