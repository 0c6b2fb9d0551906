// Package guestcount holds the audit rules: which orders still need a guest count and how an
// operator narrows the resulting list.
package guestcount

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Category groups excluded products by why they exempt an order.
type Category string

const (
	CategoryUnspecified   Category = ""
	CategoryClubMember    Category = "club_member"
	CategoryTradeGuest    Category = "trade_guest"
	CategoryComplimentary Category = "complimentary"
	CategoryGuests        Category = "guests"
)

// ErrInvalidExclusion reports a malformed exclusion entry.
var ErrInvalidExclusion = errors.New("guestcount: invalid exclusion")

// ParseCategory validates a category name. Blank input yields CategoryUnspecified.
func ParseCategory(raw string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryUnspecified, CategoryClubMember, CategoryTradeGuest, CategoryComplimentary, CategoryGuests:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidExclusion, raw)
	}
}

// ExcludedProduct is a product whose presence on an order exempts it from the guest-count rule.
type ExcludedProduct struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label,omitempty" yaml:"label"`
	Category Category `json:"category,omitempty" yaml:"category"`
}

// ExclusionSet is an immutable lookup of excluded product ids. The zero value is an empty set.
type ExclusionSet struct {
	products map[string]ExcludedProduct
}

// NewExclusionSet canonicalises and merges products. Later duplicates keep the first label and
// category seen.
func NewExclusionSet(products ...ExcludedProduct) (ExclusionSet, error) {
	set := ExclusionSet{products: make(map[string]ExcludedProduct, len(products))}
	for i, product := range products {
		key := CanonicalProductID(product.ID)
		if key == "" {
			return ExclusionSet{}, fmt.Errorf("%w: entry %d has no product id", ErrInvalidExclusion, i)
		}
		category, err := ParseCategory(string(product.Category))
		if err != nil {
			return ExclusionSet{}, fmt.Errorf("product %s: %w", product.ID, err)
		}
		if _, exists := set.products[key]; exists {
			continue
		}
		set.products[key] = ExcludedProduct{
			ID:       key,
			Label:    strings.TrimSpace(product.Label),
			Category: category,
		}
	}
	return set, nil
}

// CanonicalProductID folds id into its comparison form. UUIDs in any accepted notation (braced,
// urn-prefixed, upper case) collapse to the lower-case hyphenated form; other ids are trimmed
// and lower-cased.
func CanonicalProductID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return strings.ToLower(id)
}

// Contains reports whether productID is excluded.
func (s ExclusionSet) Contains(productID string) bool {
	_, ok := s.Lookup(productID)
	return ok
}

// Lookup returns the excluded product matching productID.
func (s ExclusionSet) Lookup(productID string) (ExcludedProduct, bool) {
	if len(s.products) == 0 {
		return ExcludedProduct{}, false
	}
	key := CanonicalProductID(productID)
	if key == "" {
		return ExcludedProduct{}, false
	}
	product, ok := s.products[key]
	return product, ok
}

// Len returns the number of distinct excluded products.
func (s ExclusionSet) Len() int {
	return len(s.products)
}

// Products lists the set sorted by id.
func (s ExclusionSet) Products() []ExcludedProduct {
	out := make([]ExcludedProduct, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountByCategory summarises the set for start-up logging.
func (s ExclusionSet) CountByCategory() map[Category]int {
	counts := make(map[Category]int)
	for _, product := range s.products {
		counts[product.Category]++
	}
	return counts
}
