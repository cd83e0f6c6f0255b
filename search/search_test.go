package search

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"inventory-stream/bus"
	"inventory-stream/cache"
	"inventory-stream/domain"
)

func newTestSearcher(t *testing.T) (*Searcher, *cache.SearchCache) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger, _ := test.NewNullLogger()
	sc := cache.NewSearchCache(client, logger, 5*time.Minute, 0)
	return NewSearcher(sc, logger, 0), sc
}

func TestSearchMissComputesThenHits(t *testing.T) {
	s, _ := newTestSearcher(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return []string{"p1", "p2"}, nil
	}

	filters := map[string]any{"category": "books"}
	first, err := s.Search(ctx, cache.DomainProductSearch, filters, nil, compute)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 compute, got %d", calls)
	}

	second, err := s.Search(ctx, cache.DomainProductSearch, filters, nil, compute)
	if err != nil {
		t.Fatalf("cached search: %v", err)
	}
	if calls != 1 {
		t.Fatalf("cached search recomputed, calls=%d", calls)
	}
	if string(first) != string(second) {
		t.Fatalf("cached payload differs: %s vs %s", first, second)
	}
}

func TestSearchComputeErrorNotCached(t *testing.T) {
	s, _ := newTestSearcher(t)
	ctx := context.Background()

	wantErr := errors.New("backend down")
	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, wantErr
		}
		return []string{"p1"}, nil
	}

	if _, err := s.Search(ctx, cache.DomainProductSearch, nil, nil, compute); !errors.Is(err, wantErr) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if _, err := s.Search(ctx, cache.DomainProductSearch, nil, nil, compute); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("failed compute should not populate the cache, calls=%d", calls)
	}
}

func TestReadAfterWriteFreshness(t *testing.T) {
	s, sc := newTestSearcher(t)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	b := bus.New(nil, "", logger)
	defer b.Close()
	inv := cache.NewInvalidator(sc, logger)
	if err := b.Subscribe(inv.Subscription()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	filters := map[string]any{"category": "books"}
	if _, err := s.Search(ctx, cache.DomainProductSearch, filters, nil, compute); err != nil {
		t.Fatalf("search: %v", err)
	}

	_, err := b.Publish(ctx, domain.ChangeEvent{
		Type:      domain.EventAvailabilityChanged,
		ProductID: "p1",
		VendorID:  "v1",
		Changes:   []domain.FieldChange{{Field: domain.FieldAvailable, Old: false, New: true}},
		Product:   &domain.Snapshot{Category: "books", Available: true, VendorID: "v1"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	key := cache.DeriveKey(cache.DomainProductSearch, filters, nil)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sc.Get(ctx, key); !ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := s.Search(ctx, cache.DomainProductSearch, filters, nil, compute); err != nil {
		t.Fatalf("post-mutation search: %v", err)
	}
	if calls != 2 {
		t.Fatalf("stale result served after mutation, calls=%d", calls)
	}
}
