package cache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
)

// Query domains whose results pass through the search cache.
const (
	DomainProductSearch  = "product_search"
	DomainVendorSearch   = "vendor_search"
	DomainVendorProducts = "vendor_products"
)

// Key identifies one cached query result. Hash is the physical cache key;
// Normalized is the pre-hash canonical form that scope matching operates on.
type Key struct {
	Domain     string
	Normalized string
	Hash       string
}

// DeriveKey canonicalizes the filter and option parameters and digests them
// into a cache key. Nil values are dropped and keys sorted before hashing,
// so semantically identical queries always derive the identical key.
func DeriveKey(domain string, filters, options map[string]any) Key {
	var sb strings.Builder
	sb.WriteString(domain)
	sb.WriteByte('?')
	writeParams(&sb, filters)
	sb.WriteByte('#')
	writeParams(&sb, options)

	normalized := sb.String()
	return Key{
		Domain:     domain,
		Normalized: normalized,
		Hash:       strconv.FormatUint(xxhash.Sum64String(normalized), 16),
	}
}

func writeParams(sb *strings.Builder, params map[string]any) {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		val, err := sonic.ConfigStd.Marshal(params[k])
		if err != nil {
			// Unencodable values still need a stable representation.
			sb.WriteString("?")
			continue
		}
		sb.Write(val)
	}
}
