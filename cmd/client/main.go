package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"powgate/internal/client"
	"powgate/internal/config"
)

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", "http://127.0.0.1:8080", "gatekeeper base URL")
	challengePath := flag.String("challenge-path", "/challenge", "challenge endpoint path")
	circuitID := flag.String("circuit-id", "::1:00000001", "X-Circuit-Id header value to present")
	solveTimeout := flag.Duration("solve-timeout", 2*time.Minute, "maximum time to spend brute-forcing a nonce")
	connectTimeout := flag.Duration("connect-timeout", 10*time.Second, "HTTP request timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration load failed: %v\n", err)
		log.Fatalf("configuration load failed: %v", err)
	}
	level, ok := cfg.LogLevel()
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid logging.level %q, falling back to ERROR\n", cfg.Logging.Level)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	logger.Info("starting powgate solver", "url", *baseURL)

	c := client.NewClient(client.Config{
		BaseURL:        *baseURL,
		ChallengePath:  *challengePath,
		CircuitID:      *circuitID,
		ConnectTimeout: *connectTimeout,
		SolveTimeout:   *solveTimeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *solveTimeout+*connectTimeout)
	defer cancel()

	status, err := c.Solve(ctx)
	if err != nil {
		logger.Error("failed to solve challenge", "error", err)
		log.Fatal(err)
	}

	logger.Info("challenge submitted", "status", status)
}
