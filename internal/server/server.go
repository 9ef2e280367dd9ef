// Package server wires the gatekeeper's two HTTP endpoints — challenge
// issuance/verification and session admission — behind an Nginx
// auth_request-compatible surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"powgate/internal/blacklist"
	"powgate/internal/config"
	"powgate/internal/session"
	"powgate/internal/system"
)

// Server is the gatekeeper's HTTP front end.
type Server struct {
	httpServer     *http.Server
	logger         *slog.Logger
	activeConns    atomic.Int32
	maxConnections int32
}

// Deps collects the components a Server needs to handle requests.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	CPUGauge  *system.Gauge
	Blacklist *blacklist.Blacklist
	Sessions  session.Cache
}

// New builds a Server bound to cfg.server.host:port, with routes mounted at
// cfg.routes.challenge and cfg.routes.auth.
func New(deps Deps) (*Server, error) {
	h := &handler{
		cfg:       deps.Config,
		logger:    deps.Logger,
		cpuGauge:  deps.CPUGauge,
		blacklist: deps.Blacklist,
		sessions:  deps.Sessions,
	}
	tmpl, err := parseChallengeTemplate()
	if err != nil {
		return nil, fmt.Errorf("parsing challenge template: %w", err)
	}
	h.tmpl = tmpl

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+deps.Config.Routes.Challenge, h.serveChallengePage)
	mux.HandleFunc("POST "+deps.Config.Routes.Challenge, h.verifyChallenge)
	mux.HandleFunc("GET "+deps.Config.Routes.Auth, h.checkSession)

	s := &Server{logger: deps.Logger, maxConnections: int32(deps.Config.Server.MaxConnections)}

	addr := fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.countConnections(mux),
		IdleTimeout: time.Duration(deps.Config.Server.KeepAlive) * time.Second,
	}
	return s, nil
}

// countConnections mirrors the teacher's activeConns bookkeeping, adapted
// from TCP-connection counting to in-flight HTTP request counting. Once
// active requests reach server.max_connections, new requests are rejected
// with 503 rather than being admitted.
func (s *Server) countConnections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.maxConnections > 0 && s.activeConns.Load() >= s.maxConnections {
			s.logger.Warn("max connections reached, rejecting request",
				"remote_addr", r.RemoteAddr, "max_connections", s.maxConnections)
			http.Error(w, "server busy", http.StatusServiceUnavailable)
			return
		}
		s.activeConns.Add(1)
		defer s.activeConns.Add(-1)
		next.ServeHTTP(w, r)
	})
}

// ActiveConnections reports the number of in-flight requests.
func (s *Server) ActiveConnections() int32 {
	return s.activeConns.Load()
}

// ListenAndServe starts the server and blocks until ctx is cancelled, at
// which point it performs a graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("server started", "address", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen failed: %w", err)
		}
		return nil
	}
}
