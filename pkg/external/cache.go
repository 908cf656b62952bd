package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acmg-amp-rating/internal/domain"
)

// CacheClient keeps automated judgments in Redis so replicas share prediction lookups.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: ttl,
	}, nil
}

// CachedJudgments represents cached judgments with metadata
type CachedJudgments struct {
	Source    domain.Source     `json:"source"`
	Variant   string            `json:"variant"`
	Judgments []domain.Judgment `json:"judgments"`
	CachedAt  time.Time         `json:"cached_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// GetJudgments retrieves the cached judgments of source for variant.
func (c *CacheClient) GetJudgments(ctx context.Context, source domain.Source, variant string) ([]domain.Judgment, bool, error) {
	key := judgmentKey(source, variant)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get judgment cache: %w", err)
	}

	var cached CachedJudgments
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Judgments, true, nil
}

// SetJudgments caches the judgments of source for variant. A zero ttl uses the default.
func (c *CacheClient) SetJudgments(ctx context.Context, source domain.Source, variant string, judgments []domain.Judgment, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	cached := CachedJudgments{
		Source:    source,
		Variant:   variant,
		Judgments: judgments,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal judgment cache data: %w", err)
	}

	return c.redis.Set(ctx, judgmentKey(source, variant), data, ttl).Err()
}

// InvalidateVariant removes the cached judgments of every automated source for variant.
func (c *CacheClient) InvalidateVariant(ctx context.Context, variant string) error {
	var keys []string
	for _, src := range domain.AutomatedSources() {
		keys = append(keys, judgmentKey(src, variant))
	}
	return c.redis.Del(ctx, keys...).Err()
}

// GetStats returns cache statistics
func (c *CacheClient) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.redis.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	return map[string]interface{}{
		"memory_info": info,
		"pool_stats":  c.redis.PoolStats(),
	}, nil
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// judgmentKey hashes the variant so structural variant ids and long alleles stay short.
func judgmentKey(source domain.Source, variant string) string {
	hash := sha256.Sum256([]byte(variant))
	return fmt.Sprintf("judgments:%s:%x", source, hash[:8])
}
