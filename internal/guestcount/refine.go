package guestcount

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/russellmoss/guest-count-check/internal/domain"
)

// Refinement narrows an audited order list. Each axis is ignored when empty.
type Refinement struct {
	Associates []string
	Search     string
}

// IsZero reports whether the refinement narrows nothing.
func (r Refinement) IsZero() bool {
	return len(associateSet(r.Associates)) == 0 && strings.TrimSpace(r.Search) == ""
}

// Refine applies associate membership and order-number search, preserving input order.
func Refine(orders []domain.Order, r Refinement) []domain.Order {
	associates := associateSet(r.Associates)
	search := strings.TrimSpace(r.Search)
	if len(associates) == 0 && search == "" {
		return orders
	}

	// Casers carry state and are not safe to share between requests.
	folder := cases.Fold()
	needle := folder.String(search)

	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if len(associates) > 0 {
			if _, ok := associates[order.AssociateName()]; !ok {
				continue
			}
		}
		if needle != "" && !strings.Contains(folder.String(order.OrderNumber), needle) {
			continue
		}
		out = append(out, order)
	}
	return out
}

// Associates returns the distinct associate names on orders, with UnknownAssociate standing in
// for missing names, in English collation order.
func Associates(orders []domain.Order) []string {
	seen := make(map[string]struct{}, len(orders))
	names := make([]string, 0)
	for _, order := range orders {
		name := order.AssociateName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	collate.New(language.English).SortStrings(names)
	return names
}

// ParseAssociates splits a comma-separated associate list, dropping blanks and duplicates.
func ParseAssociates(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(csv, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func associateSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}
