package cache

import "testing"

func TestDeriveKeyDeterministic(t *testing.T) {
	filters := map[string]any{"category": "electronics", "priceMax": 100.0}
	options := map[string]any{"limit": 20, "sort": "price"}

	k1 := DeriveKey(DomainProductSearch, filters, options)
	k2 := DeriveKey(DomainProductSearch, filters, options)
	if k1.Hash != k2.Hash || k1.Normalized != k2.Normalized {
		t.Fatalf("identical inputs derived different keys: %+v vs %+v", k1, k2)
	}
	if k1.Domain != DomainProductSearch {
		t.Fatalf("domain not carried: %+v", k1)
	}
}

func TestDeriveKeyDropsNilValues(t *testing.T) {
	withNil := DeriveKey(DomainProductSearch, map[string]any{"a": 1, "b": nil}, nil)
	without := DeriveKey(DomainProductSearch, map[string]any{"a": 1}, nil)
	if withNil.Hash != without.Hash {
		t.Fatalf("nil value should normalize away: %q vs %q", withNil.Normalized, without.Normalized)
	}
}

func TestDeriveKeyOrderIndependent(t *testing.T) {
	// Map iteration order must not leak into the key.
	f1 := map[string]any{"a": 1, "b": 2, "c": 3}
	f2 := map[string]any{"c": 3, "a": 1, "b": 2}
	for i := 0; i < 10; i++ {
		if DeriveKey(DomainProductSearch, f1, nil).Hash != DeriveKey(DomainProductSearch, f2, nil).Hash {
			t.Fatal("key depends on map iteration order")
		}
	}
}

func TestDeriveKeyDistinguishesInputs(t *testing.T) {
	base := DeriveKey(DomainProductSearch, map[string]any{"a": 1}, nil)
	cases := []Key{
		DeriveKey(DomainProductSearch, map[string]any{"a": 2}, nil),
		DeriveKey(DomainVendorSearch, map[string]any{"a": 1}, nil),
		DeriveKey(DomainProductSearch, map[string]any{"a": 1}, map[string]any{"limit": 5}),
		DeriveKey(DomainProductSearch, nil, map[string]any{"a": 1}),
	}
	for i, k := range cases {
		if k.Hash == base.Hash {
			t.Fatalf("case %d collided with base: %q vs %q", i, k.Normalized, base.Normalized)
		}
	}
}
