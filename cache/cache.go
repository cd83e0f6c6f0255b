package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	entryKeyPrefix = "search:entry:"
	scopeKeyPrefix = "search:scope:"
	indexKey       = "search:index"
	scopeRegistry  = "search:scopes"

	envelopeVersion = 1
)

// entryEnvelope wraps a cached payload with the bookkeeping the cache needs
// for logical expiry and scope cleanup.
type entryEnvelope struct {
	Version  int             `json:"version"`
	StoredAt time.Time       `json:"storedAt"`
	TTL      int64           `json:"ttlMillis"`
	Scopes   []string        `json:"scopes,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Stats is the read-only introspection surface of the cache.
type Stats struct {
	TotalEntries int64            `json:"totalEntries"`
	SizeByScope  map[string]int64 `json:"sizeByScope"`
	AverageAge   time.Duration    `json:"averageAge"`
}

// SearchCache stores computed query results in Redis, bounded by TTL and by
// a maximum entry count. Every entry is indexed by the scopes that minted
// its key, so scope eviction never scans the keyspace, and by insertion time
// for capacity eviction.
type SearchCache struct {
	redis      *redis.Client
	logger     *log.Logger
	defaultTTL time.Duration
	maxEntries int64
	now        func() time.Time
}

// NewSearchCache creates a cache with the given default TTL and entry cap.
// A maxEntries of zero disables capacity eviction.
func NewSearchCache(client *redis.Client, logger *log.Logger, defaultTTL time.Duration, maxEntries int) *SearchCache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &SearchCache{
		redis:      client,
		logger:     logger,
		defaultTTL: defaultTTL,
		maxEntries: int64(maxEntries),
		now:        time.Now,
	}
}

// Get returns the cached payload for the key, or false when absent or
// logically expired. Expired entries are removed on the way out.
func (c *SearchCache) Get(ctx context.Context, key Key) ([]byte, bool) {
	data, err := c.redis.Get(ctx, entryKeyPrefix+key.Hash).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithField("key", key.Hash).Warnf("cache get: %v", err)
			return nil, false
		}
		// The backing store may have expired the value behind our back;
		// drop any leftover insertion-index member.
		_ = c.redis.ZRem(ctx, indexKey, key.Hash).Err()
		return nil, false
	}
	var env entryEnvelope
	if err := sonic.ConfigStd.Unmarshal(data, &env); err != nil {
		c.logger.WithField("key", key.Hash).Warnf("cache entry corrupt: %v", err)
		_, _ = c.removeEntries(ctx, []string{key.Hash}, nil)
		return nil, false
	}
	if c.now().Sub(env.StoredAt) > time.Duration(env.TTL)*time.Millisecond {
		_, _ = c.removeEntries(ctx, []string{key.Hash}, nil)
		return nil, false
	}
	return env.Payload, true
}

// Set stores a payload under the key and registers it under the scopes that
// minted it. When the entry count would exceed the cap, the oldest entries
// by insertion time are evicted down to the cap first.
func (c *SearchCache) Set(ctx context.Context, key Key, payload []byte, scopes []Scope, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	exists, err := c.redis.Exists(ctx, entryKeyPrefix+key.Hash).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		if err := c.enforceCap(ctx); err != nil {
			return err
		}
	}

	storedAt := c.now()
	scopeNames := make([]string, len(scopes))
	for i, s := range scopes {
		scopeNames[i] = string(s)
	}
	env := entryEnvelope{
		Version:  envelopeVersion,
		StoredAt: storedAt,
		TTL:      ttl.Milliseconds(),
		Scopes:   scopeNames,
		Payload:  payload,
	}
	data, err := sonic.ConfigStd.Marshal(env)
	if err != nil {
		return err
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, entryKeyPrefix+key.Hash, data, ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(storedAt.UnixMilli()), Member: key.Hash})
	for _, s := range scopeNames {
		pipe.SAdd(ctx, scopeKeyPrefix+s, key.Hash)
		pipe.SAdd(ctx, scopeRegistry, s)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// EvictScopes removes every entry registered under any of the given scopes
// and returns how many entries were removed.
func (c *SearchCache) EvictScopes(ctx context.Context, scopes ...Scope) (int, error) {
	// Remember which scope set each hash came from, so the membership is
	// cleaned up even when the entry's value already expired physically.
	origins := make(map[string][]string)
	var hashes []string
	for _, s := range scopes {
		members, err := c.redis.SMembers(ctx, scopeKeyPrefix+string(s)).Result()
		if err != nil {
			return 0, err
		}
		for _, h := range members {
			if _, ok := origins[h]; !ok {
				hashes = append(hashes, h)
			}
			origins[h] = append(origins[h], string(s))
		}
	}

	removed, err := c.removeEntries(ctx, hashes, origins)
	if err != nil {
		return removed, err
	}
	for _, s := range scopes {
		if n, _ := c.redis.SCard(ctx, scopeKeyPrefix+string(s)).Result(); n == 0 {
			_ = c.redis.SRem(ctx, scopeRegistry, string(s)).Err()
		}
	}
	return removed, nil
}

// Clear wipes every entry and scope index, returning the entry count removed.
func (c *SearchCache) Clear(ctx context.Context) (int, error) {
	hashes, err := c.redis.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	scopes, err := c.redis.SMembers(ctx, scopeRegistry).Result()
	if err != nil {
		return 0, err
	}

	pipe := c.redis.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, entryKeyPrefix+h)
	}
	for _, s := range scopes {
		pipe.Del(ctx, scopeKeyPrefix+s)
	}
	pipe.Del(ctx, indexKey)
	pipe.Del(ctx, scopeRegistry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(hashes), nil
}

// CacheStats reports entry count, per-scope sizes and the mean entry age.
func (c *SearchCache) CacheStats(ctx context.Context) (Stats, error) {
	stats := Stats{SizeByScope: make(map[string]int64)}

	total, err := c.redis.ZCard(ctx, indexKey).Result()
	if err != nil {
		return Stats{}, err
	}
	stats.TotalEntries = total

	scopes, err := c.redis.SMembers(ctx, scopeRegistry).Result()
	if err != nil {
		return Stats{}, err
	}
	for _, s := range scopes {
		n, err := c.redis.SCard(ctx, scopeKeyPrefix+s).Result()
		if err != nil {
			return Stats{}, err
		}
		stats.SizeByScope[s] = n
	}

	members, err := c.redis.ZRangeWithScores(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return Stats{}, err
	}
	if len(members) > 0 {
		nowMilli := c.now().UnixMilli()
		var totalAge int64
		for _, m := range members {
			totalAge += nowMilli - int64(m.Score)
		}
		stats.AverageAge = time.Duration(totalAge/int64(len(members))) * time.Millisecond
	}
	return stats, nil
}

// enforceCap evicts the oldest entries until an insertion fits under the cap.
func (c *SearchCache) enforceCap(ctx context.Context) error {
	if c.maxEntries <= 0 {
		return nil
	}
	total, err := c.redis.ZCard(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	if total < c.maxEntries {
		return nil
	}
	excess := total - c.maxEntries + 1
	oldest, err := c.redis.ZRange(ctx, indexKey, 0, excess-1).Result()
	if err != nil {
		return err
	}
	n, err := c.removeEntries(ctx, oldest, nil)
	if err != nil {
		return err
	}
	c.logger.WithFields(log.Fields{
		"evicted": n,
		"cap":     c.maxEntries,
	}).Debug("cache capacity eviction")
	return nil
}

// removeEntries deletes entries and unregisters them from the insertion
// index and their scope sets. origins carries the scope sets each hash was
// found in, used when the envelope is no longer readable. Returns how many
// entries actually existed.
func (c *SearchCache) removeEntries(ctx context.Context, hashes []string, origins map[string][]string) (int, error) {
	removed := 0
	for _, h := range hashes {
		scopes := origins[h]
		if data, err := c.redis.Get(ctx, entryKeyPrefix+h).Bytes(); err == nil {
			var env entryEnvelope
			if err := sonic.ConfigStd.Unmarshal(data, &env); err == nil {
				scopes = append(scopes, env.Scopes...)
			}
		}

		pipe := c.redis.TxPipeline()
		del := pipe.Del(ctx, entryKeyPrefix+h)
		pipe.ZRem(ctx, indexKey, h)
		for _, s := range scopes {
			pipe.SRem(ctx, scopeKeyPrefix+s, h)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, err
		}
		if del.Val() > 0 {
			removed++
		}
	}
	return removed, nil
}
