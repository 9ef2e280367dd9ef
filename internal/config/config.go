// Package config loads the static TOML configuration for the proof-of-work
// gatekeeper.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.toml
var defaultConfig []byte

// ConfigPathEnv names the environment variable used to point at an override
// TOML file. When unset, the embedded default is used.
const ConfigPathEnv = "POWGATE_CONFIG"

// Config is the root configuration document, one field per TOML table.
type Config struct {
	Server   Server   `toml:"server"`
	Routes   Routes   `toml:"routes"`
	Logging  Logging  `toml:"logging"`
	Pow      Pow      `toml:"pow"`
	Session  Session  `toml:"session"`
	Security Security `toml:"security"`
	System   System   `toml:"system"`
}

// Server holds network binding and runtime sizing.
type Server struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Workers        int    `toml:"workers"`
	Backlog        int    `toml:"backlog"`
	MaxConnections int    `toml:"max_connections"`
	KeepAlive      int    `toml:"keep_alive"`
}

// Routes holds the path strings the two endpoints are served on.
type Routes struct {
	Auth      string `toml:"auth"`
	Challenge string `toml:"challenge"`
}

// Logging holds the configured log level name.
type Logging struct {
	Level string `toml:"level"`
}

// LogLevel parses logging.level into a slog.Level. An unrecognized level
// name falls back to slog.LevelError, and ok reports whether the configured
// value was actually recognized.
func (c *Config) LogLevel() (level slog.Level, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(c.Logging.Level)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelError, false
	}
}

// Pow holds proof-of-work sizing: validity window, per-tier difficulty, and
// the CPU thresholds that select a tier.
type Pow struct {
	ChallengeTTL  uint64        `toml:"challenge_ttl"`
	Difficulty    Difficulty    `toml:"difficulty"`
	CPUThresholds CPUThresholds `toml:"cpu_thresholds"`
}

// Difficulty holds the trailing-zero-bit target for each load tier.
type Difficulty struct {
	Minimum uint8 `toml:"minimum"`
	Medium  uint8 `toml:"medium"`
	High    uint8 `toml:"high"`
	Ultra   uint8 `toml:"ultra"`
}

// CPUThresholds holds the half-open CPU percentage breakpoints between
// tiers. Critical is reserved for future admission control and is accepted
// but unused by the base difficulty policy.
type CPUThresholds struct {
	Low      float32 `toml:"low"`
	Medium   float32 `toml:"medium"`
	High     float32 `toml:"high"`
	Critical float32 `toml:"critical"`
}

// Session holds session-backend tuning, shared by the local and remote
// implementations.
type Session struct {
	RedisURL        string `toml:"redis_url"`
	InitialCapacity int    `toml:"initial_capacity"`
	MaxCapacity     int64  `toml:"max_capacity"`
	TTI             uint64 `toml:"tti"`
	TTL             uint64 `toml:"ttl"`
}

// Security holds the PoW secret passphrase.
type Security struct {
	KeyedHash string `toml:"keyed_hash"`
}

// System holds background sampler tuning.
type System struct {
	CPUUsageUpdateInterval uint64 `toml:"cpu_usage_update_interval"`
}

// Load reads the configuration. If the POWGATE_CONFIG environment variable
// names a file, it is read from disk; otherwise the embedded default is
// used.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv(ConfigPathEnv); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading configuration file %q: %w", path, err)
		}
		return &cfg, nil
	}

	if _, err := toml.NewDecoder(bytes.NewReader(defaultConfig)).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding embedded default configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for internally-consistent,
// usable values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be positive, got: %d", c.Server.Workers)
	}
	if c.Server.Backlog < 1 {
		return fmt.Errorf("server.backlog must be positive, got: %d", c.Server.Backlog)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("server.max_connections must be positive, got: %d", c.Server.MaxConnections)
	}
	if c.Routes.Auth == "" || c.Routes.Challenge == "" {
		return fmt.Errorf("routes.auth and routes.challenge must both be set")
	}
	if c.Pow.ChallengeTTL == 0 {
		return fmt.Errorf("pow.challenge_ttl must be positive, got: %d", c.Pow.ChallengeTTL)
	}
	d := c.Pow.Difficulty
	if !(d.Minimum <= d.Medium && d.Medium <= d.High && d.High <= d.Ultra) {
		return fmt.Errorf("pow.difficulty tiers must be non-decreasing: minimum=%d medium=%d high=%d ultra=%d",
			d.Minimum, d.Medium, d.High, d.Ultra)
	}
	t := c.Pow.CPUThresholds
	if !(t.Low <= t.Medium && t.Medium <= t.High && t.High <= t.Critical) {
		return fmt.Errorf("pow.cpu_thresholds must be non-decreasing: low=%v medium=%v high=%v critical=%v",
			t.Low, t.Medium, t.High, t.Critical)
	}
	if c.Session.TTL == 0 {
		return fmt.Errorf("session.ttl must be positive, got: %d", c.Session.TTL)
	}
	if c.Session.MaxCapacity < 1 {
		return fmt.Errorf("session.max_capacity must be positive, got: %d", c.Session.MaxCapacity)
	}
	if c.System.CPUUsageUpdateInterval == 0 {
		return fmt.Errorf("system.cpu_usage_update_interval must be positive, got: %d", c.System.CPUUsageUpdateInterval)
	}
	return nil
}
