package cache

// ScopesForQuery derives the scopes a query result belongs to from its
// filter parameters. These are the scopes the entry is registered under at
// Set time, and they mirror exactly what ScopesForEvent produces on the
// invalidation side: an entry is evictable by an event iff they share a
// scope.
func ScopesForQuery(domain string, filters map[string]any) []Scope {
	scopes := []Scope{DomainScope(domain)}

	if v, ok := filters["vendorId"].(string); ok && v != "" {
		scopes = append(scopes, VendorScope(domain, v))
	}
	if cat, ok := filters["category"].(string); ok && cat != "" {
		scopes = append(scopes, CategoryScope(domain, cat))
	}

	if domain == DomainProductSearch {
		low, hasLow := asFloat(filters["priceMin"])
		high, hasHigh := asFloat(filters["priceMax"])
		if hasLow || hasHigh {
			if !hasLow {
				low = 0
			}
			if !hasHigh {
				high = brackets[len(brackets)-1].Low
			}
			for _, b := range BracketsOverlapping(low, high) {
				scopes = append(scopes, PriceScope(domain, b))
			}
		}
	}

	return scopes
}
