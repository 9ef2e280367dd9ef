package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"powgate/internal/blacklist"
	"powgate/internal/config"
	"powgate/internal/session"
	"powgate/internal/system"
)

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.Server{Host: "127.0.0.1", Port: port, Workers: 1, Backlog: 128, MaxConnections: 100, KeepAlive: 30},
		Routes: config.Routes{Auth: "/auth", Challenge: "/challenge"},
		Pow: config.Pow{
			ChallengeTTL:  60,
			Difficulty:    config.Difficulty{Minimum: 0, Medium: 0, High: 0, Ultra: 0},
			CPUThresholds: config.CPUThresholds{Low: 30, Medium: 60, High: 85, Critical: 95},
		},
		Session: config.Session{InitialCapacity: 16, MaxCapacity: 1000, TTI: 60, TTL: 60},
	}
}

func newTestServer(t *testing.T, port int) (*Server, session.Cache, *blacklist.Blacklist) {
	t.Helper()
	cfg := testConfig(t, port)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions, err := session.New(logger, &cfg.Session)
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	bl := blacklist.New(time.Duration(cfg.Session.TTL) * time.Second)
	gauge := &system.Gauge{}

	srv, err := New(Deps{Config: cfg, Logger: logger, CPUGauge: gauge, Blacklist: bl, Sessions: sessions})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv, sessions, bl
}

func TestGracefulShutdownStopsAcceptingNewWork(t *testing.T) {
	srv, sessions, bl := newTestServer(t, 18082)
	defer sessions.Close()
	defer bl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	// Give the listener a moment to come up.
	time.Sleep(50 * time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not shut down in time")
	}

	if resp, err := http.Get("http://127.0.0.1:18082/auth"); err == nil {
		resp.Body.Close()
		t.Fatalf("expected requests to be refused after shutdown, got status %d", resp.StatusCode)
	}
}

func TestActiveConnectionsTracksInFlightRequests(t *testing.T) {
	srv, sessions, bl := newTestServer(t, 18083)
	defer sessions.Close()
	defer bl.Close()

	if srv.ActiveConnections() != 0 {
		t.Fatalf("expected zero active connections before any requests")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ListenAndServe(ctx)
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:18083/auth")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a request with no circuit id, got %d", resp.StatusCode)
	}
	if n := srv.ActiveConnections(); n != 0 {
		t.Fatalf("expected zero active connections once the request completed, got %d", n)
	}
}

func TestMaxConnectionsRejectsOverLimitRequests(t *testing.T) {
	cfg := testConfig(t, 18084)
	cfg.Server.MaxConnections = 1
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions, err := session.New(logger, &cfg.Session)
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	defer sessions.Close()
	bl := blacklist.New(time.Duration(cfg.Session.TTL) * time.Second)
	defer bl.Close()
	gauge := &system.Gauge{}

	srv, err := New(Deps{Config: cfg, Logger: logger, CPUGauge: gauge, Blacklist: bl, Sessions: sessions})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ListenAndServe(ctx)
	time.Sleep(50 * time.Millisecond)

	// Simulate an already-saturated server: bump the in-flight counter to
	// the configured ceiling before the next request lands.
	srv.activeConns.Store(srv.maxConnections)

	resp, err := http.Get("http://127.0.0.1:18084/auth")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once max_connections is reached, got %d", resp.StatusCode)
	}
}
