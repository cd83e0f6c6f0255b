package api

import (
	"context"

	"inventory-stream/cache"
)

// CacheAdmin is the administrative surface of the search cache.
type CacheAdmin interface {
	Clear(ctx context.Context) (int, error)
	CacheStats(ctx context.Context) (cache.Stats, error)
}

// StreamHub attaches event-stream clients to notification audiences.
type StreamHub interface {
	Register(audiences []string) (<-chan []byte, func())
}
