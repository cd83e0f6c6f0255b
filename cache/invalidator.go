package cache

import (
	"context"

	log "github.com/sirupsen/logrus"

	"inventory-stream/bus"
	"inventory-stream/domain"
)

// searchDomains are the query families accepting category and price filters.
var searchDomains = []string{DomainProductSearch, DomainVendorSearch}

// Invalidator is the bus subscriber that turns one change event into the
// minimal set of scope evictions. Failures are logged and swallowed: a
// missed invalidation degrades to serving stale data for at most one TTL
// window, which is the accepted trade-off.
type Invalidator struct {
	cache  *SearchCache
	logger *log.Logger
}

// NewInvalidator creates an Invalidator over the given cache.
func NewInvalidator(c *SearchCache, logger *log.Logger) *Invalidator {
	return &Invalidator{cache: c, logger: logger}
}

// Subscription returns the bus registration for the invalidator. It listens
// to every event type; scope selection differentiates per type.
func (inv *Invalidator) Subscription() bus.Subscription {
	return bus.Subscription{
		ID:       "cache-invalidator",
		Filter:   bus.AllEvents(),
		Callback: inv.HandleEvent,
	}
}

// HandleEvent evicts every cache entry the event could have affected.
func (inv *Invalidator) HandleEvent(ctx context.Context, ev domain.ChangeEvent) error {
	scopes := ScopesForEvent(ev)
	removed, err := inv.cache.EvictScopes(ctx, scopes...)
	if err != nil {
		inv.logger.WithFields(log.Fields{
			"event_id":   ev.ID,
			"event_type": string(ev.Type),
		}).Warnf("cache invalidation: %v", err)
		return nil
	}
	inv.logger.WithFields(log.Fields{
		"event_id":   ev.ID,
		"event_type": string(ev.Type),
		"scopes":     len(scopes),
		"evicted":    removed,
	}).Debug("cache invalidated")
	return nil
}

// ScopesForEvent derives the scope patterns one event invalidates:
//   - the owning vendor's scopes, always: the vendor's own listing plus the
//     vendor-filtered search results ScopesForQuery registers;
//   - the category scopes across search domains when a snapshot is present;
//   - the price brackets any pre- or post-mutation price falls into, so a
//     price crossing a bracket boundary invalidates both sides;
//   - the whole-domain scopes when the event type can change which items
//     appear in a result set at all.
func ScopesForEvent(ev domain.ChangeEvent) []Scope {
	scopes := []Scope{VendorScope(DomainVendorProducts, ev.VendorID)}
	for _, d := range searchDomains {
		scopes = append(scopes, VendorScope(d, ev.VendorID))
	}

	if ev.Product != nil && ev.Product.Category != "" {
		for _, d := range searchDomains {
			scopes = append(scopes, CategoryScope(d, ev.Product.Category))
		}
	}

	for _, price := range eventPrices(ev) {
		for _, b := range PriceBrackets(price) {
			scopes = append(scopes, PriceScope(DomainProductSearch, b))
		}
	}

	if ev.Type.MembershipChanging() {
		for _, d := range searchDomains {
			scopes = append(scopes, DomainScope(d))
		}
	}

	return dedupeScopes(scopes)
}

// eventPrices collects every price the item held around the mutation: the
// snapshot price plus both sides of any basePrice diff. The price-bracket
// eviction keys off price presence, independent of the event's type.
func eventPrices(ev domain.ChangeEvent) []float64 {
	var prices []float64
	if ev.Product != nil {
		prices = append(prices, ev.Product.BasePrice)
	}
	for _, c := range ev.Changes {
		if c.Field != domain.FieldBasePrice {
			continue
		}
		if v, ok := asFloat(c.Old); ok {
			prices = append(prices, v)
		}
		if v, ok := asFloat(c.New); ok {
			prices = append(prices, v)
		}
	}
	return prices
}

// asFloat widens the numeric types a FieldChange may carry after a trip
// through JSON.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func dedupeScopes(scopes []Scope) []Scope {
	seen := make(map[Scope]struct{}, len(scopes))
	out := scopes[:0]
	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
