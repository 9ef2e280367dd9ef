package session

import (
	"log/slog"
	"time"

	"powgate/internal/config"
)

// New builds the configured session backend: Redis when
// session.redis_url is non-empty, otherwise the local in-process cache.
func New(logger *slog.Logger, cfg *config.Session) (Cache, error) {
	ttl := time.Duration(cfg.TTL) * time.Second
	if cfg.RedisURL != "" {
		logger.Info("using Redis session backend", "redis_url", cfg.RedisURL)
		return NewRedisCache(logger, cfg.RedisURL, ttl)
	}
	logger.Info("using local in-process session backend")
	tti := time.Duration(cfg.TTI) * time.Second
	return NewLocalCache(cfg.InitialCapacity, cfg.MaxCapacity, ttl, tti)
}
