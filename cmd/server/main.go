package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"powgate/internal/blacklist"
	"powgate/internal/config"
	"powgate/internal/keyedhash"
	"powgate/internal/server"
	"powgate/internal/session"
	"powgate/internal/system"
)

func main() {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration load failed: %v\n", err)
		log.Fatalf("configuration load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration validation failed: %v\n", err)
		log.Fatalf("configuration validation failed: %v", err)
	}

	level, ok := cfg.LogLevel()
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid logging.level %q, falling back to ERROR\n", cfg.Logging.Level)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	logger.Info("starting powgate gatekeeper")
	logger.Info("configuration loaded",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"workers", cfg.Server.Workers,
		"routes_challenge", cfg.Routes.Challenge,
		"routes_auth", cfg.Routes.Auth)

	runtime.GOMAXPROCS(cfg.Server.Workers)

	keyedhash.InitSecret(logger, cfg.Security.KeyedHash)

	sampler := system.NewSampler(logger, time.Duration(cfg.System.CPUUsageUpdateInterval)*time.Second)

	bl := blacklist.New(time.Duration(cfg.Session.TTL) * time.Second)
	defer bl.Close()

	sessions, err := session.New(logger, &cfg.Session)
	if err != nil {
		logger.Error("failed to build session cache", "error", err)
		log.Fatalf("session cache init failed: %v", err)
	}
	defer sessions.Close()

	srv, err := server.New(server.Deps{
		Config:    cfg,
		Logger:    logger,
		CPUGauge:  sampler.Gauge(),
		Blacklist: bl,
		Sessions:  sessions,
	})
	if err != nil {
		logger.Error("failed to build server", "error", err)
		log.Fatalf("server init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sampler.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()

		logger.Info("waiting for server to shut down gracefully...")
		if err := <-errChan; err != nil {
			logger.Error("server shutdown error", "error", err)
			log.Fatal(err)
		}

	case err := <-errChan:
		cancel()
		if err != nil {
			logger.Error("server error", "error", err)
			log.Fatal(err)
		}
		logger.Info("server exited without error")
	}

	logger.Info("server stopped")
}
