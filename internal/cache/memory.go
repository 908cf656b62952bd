// Package cache provides the in-process cache tier for automated judgments.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/acmg-amp-rating/internal/domain"
)

// Default sizing used when the caller passes zero values.
const (
	DefaultMaxItems = 1000
	DefaultTTL      = 15 * time.Minute
)

// MemoryCache is a size- and age-bounded LRU of judgments keyed by source and variant.
// Per-call TTLs are ignored; every entry lives for the cache-wide TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, []domain.Judgment]
}

// NewMemoryCache creates a new in-memory judgment cache.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []domain.Judgment](maxItems, nil, ttl)}
}

// GetJudgments returns a copy of the cached judgments.
func (c *MemoryCache) GetJudgments(_ context.Context, source domain.Source, variant string) ([]domain.Judgment, bool, error) {
	j, ok := c.lru.Get(key(source, variant))
	if !ok {
		return nil, false, nil
	}
	return append([]domain.Judgment(nil), j...), true, nil
}

// SetJudgments stores a copy of judgments.
func (c *MemoryCache) SetJudgments(_ context.Context, source domain.Source, variant string, judgments []domain.Judgment, _ time.Duration) error {
	c.lru.Add(key(source, variant), append([]domain.Judgment(nil), judgments...))
	return nil
}

// Invalidate drops every source's entry for variant.
func (c *MemoryCache) Invalidate(variant string) {
	for _, src := range domain.AutomatedSources() {
		c.lru.Remove(key(src, variant))
	}
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

func key(source domain.Source, variant string) string {
	return string(source) + "|" + variant
}
