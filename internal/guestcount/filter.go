package guestcount

import "github.com/russellmoss/guest-count-check/internal/domain"

// NeedsGuestCount reports whether order is missing a guest count and carries no excluded product.
func NeedsGuestCount(order domain.Order, exclusions ExclusionSet) bool {
	if order.HasGuestCount() {
		return false
	}
	_, excluded := ExcludingItem(order, exclusions)
	return !excluded
}

// ExcludingItem returns the first line item whose product is in exclusions.
func ExcludingItem(order domain.Order, exclusions ExclusionSet) (domain.Item, bool) {
	for _, item := range order.Items {
		if exclusions.Contains(item.ProductID) {
			return item, true
		}
	}
	return domain.Item{}, false
}

// Filter keeps the orders that need a guest count, preserving input order. The input slice is not
// modified.
func Filter(orders []domain.Order, exclusions ExclusionSet) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if NeedsGuestCount(order, exclusions) {
			out = append(out, order)
		}
	}
	return out
}
