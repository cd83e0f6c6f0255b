package cache

import (
	"fmt"
	"math"
)

// Scope names a family of cache entries that one kind of inventory change
// can affect (a vendor's listings, a category, a price bracket, or a whole
// query domain). Entries are indexed by scope when stored, so eviction is a
// direct index lookup rather than a keyspace scan.
type Scope string

// VendorScope covers entries for one vendor's results in a domain.
func VendorScope(domain, vendorID string) Scope {
	return Scope(domain + "|vendor:" + vendorID)
}

// CategoryScope covers entries filtered to one category in a domain.
func CategoryScope(domain, category string) Scope {
	return Scope(domain + "|category:" + category)
}

// PriceScope covers entries filtered to one price bracket in a domain.
func PriceScope(domain string, b Bracket) Scope {
	return Scope(domain + "|price:" + b.Label())
}

// DomainScope covers every entry in a query domain.
func DomainScope(domain string) Scope {
	return Scope(domain + "|all")
}

// Bracket is a half-open price range [Low, High).
type Bracket struct {
	Low  float64
	High float64
}

// brackets overlap so that a price sitting on a boundary always lands in at
// least one bracket shared with its neighbors.
var brackets = []Bracket{
	{0, 10},
	{5, 25},
	{20, 50},
	{40, 100},
	{80, 250},
	{200, 500},
	{400, 1000},
	{800, math.Inf(1)},
}

// Label returns the bracket's stable textual form, e.g. "40-100" or "800-inf".
func (b Bracket) Label() string {
	if math.IsInf(b.High, 1) {
		return fmt.Sprintf("%g-inf", b.Low)
	}
	return fmt.Sprintf("%g-%g", b.Low, b.High)
}

// Contains reports whether the price falls inside the bracket.
func (b Bracket) Contains(price float64) bool {
	return price >= b.Low && price < b.High
}

// PriceBrackets returns every bracket the price falls into. Negative prices
// belong to no bracket.
func PriceBrackets(price float64) []Bracket {
	var out []Bracket
	for _, b := range brackets {
		if b.Contains(price) {
			out = append(out, b)
		}
	}
	return out
}

// BracketsOverlapping returns every bracket intersecting [low, high].
func BracketsOverlapping(low, high float64) []Bracket {
	var out []Bracket
	for _, b := range brackets {
		if low < b.High && high >= b.Low {
			out = append(out, b)
		}
	}
	return out
}
