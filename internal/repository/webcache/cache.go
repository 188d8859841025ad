// Package webcache caches web search results in a key-value store with a
// TTL, so identical research queries within the window skip the provider.
package webcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/db"
	"github.com/kailas-cloud/ragline/internal/domain"
)

const (
	cacheKeyPrefix = "ragline:web_cache:"
	defaultTTL     = 15 * time.Minute
)

// store is the consumer interface for the web search cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// searcher is the inner web search contract this decorator wraps.
type searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
}

// CachedSearcher caches search hits keyed by (query, k).
type CachedSearcher struct {
	inner  searcher
	store  store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a caching decorator. ttl <= 0 falls back to 15 minutes.
func New(inner searcher, s store, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedSearcher{inner: inner, store: s, ttl: ttl, logger: logger}
}

// Search returns cached hits for the same query and k within the TTL window,
// calling the inner searcher otherwise. Cache failures degrade to a direct
// provider call, never to a request failure.
func (c *CachedSearcher) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	key := c.cacheKey(query, k)

	if hits, ok := c.getFromCache(ctx, key); ok {
		return hits, nil
	}

	hits, err := c.inner.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	c.putToCache(ctx, key, hits)
	return hits, nil
}

func (c *CachedSearcher) cacheKey(query string, k int) string {
	h := sha256.Sum256([]byte(strconv.Itoa(k) + ":" + query))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedSearcher) getFromCache(ctx context.Context, key string) ([]domain.SearchHit, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached search results", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var hits []domain.SearchHit
	if err := json.Unmarshal(data, &hits); err != nil {
		c.logger.Warn("Failed to parse cached search results", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return hits, true
}

func (c *CachedSearcher) putToCache(ctx context.Context, key string, hits []domain.SearchHit) {
	data, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache search results", zap.String("key", key), zap.Error(err))
	}
}
