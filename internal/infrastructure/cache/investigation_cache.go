package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meridianrisk/fraud-impact-engine/internal/infrastructure/config"
)

const completedKeyPrefix = "fraud:investigation:completed:"

// InvestigationCache is the redis fast path for the re-investigation
// skip check. It is advisory: a miss falls through to the result store,
// and errors never block an investigation.
type InvestigationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewInvestigationCache connects to redis and verifies the connection
func NewInvestigationCache(cfg *config.RedisConfig, logger *zap.Logger) (*InvestigationCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("investigation cache initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Duration("ttl", cfg.TTL))

	return &InvestigationCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// NewInvestigationCacheWithClient wraps an existing client; tests use this
func NewInvestigationCacheWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *InvestigationCache {
	return &InvestigationCache{client: client, ttl: ttl, logger: logger}
}

// WasCompleted reports whether a completed investigation is recorded for
// the entity
func (c *InvestigationCache) WasCompleted(ctx context.Context, entityID string) (bool, error) {
	_, err := c.client.Get(ctx, completedKeyPrefix+entityID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	return true, nil
}

// MarkCompleted records a completed investigation for the entity
func (c *InvestigationCache) MarkCompleted(ctx context.Context, entityID string) error {
	if err := c.client.Set(ctx, completedKeyPrefix+entityID, time.Now().UTC().Format(time.RFC3339), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops the completion marker, forcing the next run to check
// the result store
func (c *InvestigationCache) Invalidate(ctx context.Context, entityID string) error {
	if err := c.client.Del(ctx, completedKeyPrefix+entityID).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (c *InvestigationCache) Close() error {
	return c.client.Close()
}
