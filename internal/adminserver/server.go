// Package adminserver exposes the pipeline's operational HTTP surface:
// liveness/readiness probes and a Prometheus scrape endpoint. There is
// no domain REST API here — events enter as event-log rows, not HTTP
// requests (spec.md §1).
package adminserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/estraier/stgy-sub003/internal/adminmw"
)

// Pinger is satisfied by the connections the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps an http.Server with the admin router.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// New builds the admin server, bound to addr, checking ready against
// db and bus on /readyz.
func New(addr string, db Pinger, bus Pinger, log zerolog.Logger) *Server {
	log = log.With().Str("component", "adminserver").Logger()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(adminmw.RequestID)
	r.Use(adminmw.SecurityHeaders)
	r.Use(adminmw.CORS(nil))
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("readiness check: database unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := bus.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("readiness check: wake bus unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// ListenAndServe runs the server until it errors or is shut down.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("admin server listening")
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
