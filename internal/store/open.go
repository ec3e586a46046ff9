package store

import (
	"context"
	"time"

	"github.com/chemtrack/chemtrack/internal/clock"
	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	probeInterval = 200 * time.Millisecond
	probeRetries  = 2
)

// Open returns the shared Redis store when it is configured and answers a
// ping, and the process-local MemoryStore otherwise. The fallback is logged
// as a warning; callers see the same interface either way.
func Open(ctx context.Context, cfg *config.RedisConfig, logger *logrus.Logger) TTLStore {
	if cfg.Endpoint == "" {
		logger.Warn("Redis not configured, using in-memory store (state is not shared between instances)")
		return NewMemoryStore(clock.New())
	}

	redisStore := NewRedisStore(cfg, logger)

	backoff := retry.WithMaxRetries(probeRetries, retry.NewConstant(probeInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := redisStore.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).WithField("endpoint", cfg.Endpoint).
			Warn("Redis not reachable, using in-memory store (state is not shared between instances)")
		_ = redisStore.Close()
		return NewMemoryStore(clock.New())
	}

	logger.WithField("endpoint", cfg.Endpoint).Info("Redis connection established")
	return redisStore
}
