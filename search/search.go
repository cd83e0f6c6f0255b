package search

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"inventory-stream/cache"
)

// ComputeFunc runs the expensive query on a cache miss.
type ComputeFunc func(ctx context.Context) (any, error)

// Searcher is the read-through query path: derive the cache key, serve a
// hit, otherwise compute and populate. It shares key derivation and scope
// registration with the invalidator, which is what makes eviction precise.
type Searcher struct {
	cache  *cache.SearchCache
	logger *log.Logger
	ttl    time.Duration
}

// NewSearcher creates a Searcher with an optional per-query TTL override;
// zero means the cache's default.
func NewSearcher(c *cache.SearchCache, logger *log.Logger, ttl time.Duration) *Searcher {
	return &Searcher{cache: c, logger: logger, ttl: ttl}
}

// Search returns the serialized result for the query, from cache when
// possible. Compute errors are returned as-is and never cached; cache write
// failures only cost the next caller a recompute, so they are logged and
// swallowed.
func (s *Searcher) Search(ctx context.Context, domain string, filters, options map[string]any, compute ComputeFunc) ([]byte, error) {
	key := cache.DeriveKey(domain, filters, options)
	if payload, ok := s.cache.Get(ctx, key); ok {
		return payload, nil
	}

	result, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := sonic.ConfigStd.Marshal(result)
	if err != nil {
		return nil, err
	}

	scopes := cache.ScopesForQuery(domain, filters)
	if err := s.cache.Set(ctx, key, payload, scopes, s.ttl); err != nil {
		s.logger.WithFields(log.Fields{
			"domain": domain,
			"key":    key.Hash,
		}).Warnf("cache populate: %v", err)
	}
	return payload, nil
}
