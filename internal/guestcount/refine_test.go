package guestcount

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/russellmoss/guest-count-check/internal/domain"
)

func associateOrders() []domain.Order {
	return []domain.Order{
		{ID: "1", OrderNumber: "10452", SalesAssociate: &domain.SalesAssociate{Name: "Dana"}},
		{ID: "2", OrderNumber: "A-2001", SalesAssociate: &domain.SalesAssociate{Name: "bea"}},
		{ID: "3", OrderNumber: "a-2002"},
		{ID: "4", OrderNumber: "10460", SalesAssociate: &domain.SalesAssociate{Name: "  "}},
		{ID: "5", OrderNumber: "10461", SalesAssociate: &domain.SalesAssociate{Name: "Dana"}},
	}
}

func ids(orders []domain.Order) []string {
	out := make([]string, 0, len(orders))
	for _, order := range orders {
		out = append(out, order.ID)
	}
	return out
}

func TestRefineNoOpWhenEmpty(t *testing.T) {
	t.Parallel()

	orders := associateOrders()
	require.Equal(t, orders, Refine(orders, Refinement{}))
	require.Equal(t, orders, Refine(orders, Refinement{Associates: []string{" ", ""}, Search: "   "}))
	require.True(t, Refinement{Associates: []string{""}}.IsZero())
}

func TestRefineByAssociate(t *testing.T) {
	t.Parallel()

	got := Refine(associateOrders(), Refinement{Associates: []string{"Dana", domain.UnknownAssociate}})
	require.Equal(t, []string{"1", "3", "4", "5"}, ids(got))
}

func TestRefineBySearchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"2", "3"}, ids(Refine(associateOrders(), Refinement{Search: "A-200"})))
	require.Equal(t, []string{"1", "4", "5"}, ids(Refine(associateOrders(), Refinement{Search: " 104 "})))
}

func TestRefineCombinesAxes(t *testing.T) {
	t.Parallel()

	got := Refine(associateOrders(), Refinement{Associates: []string{"Dana"}, Search: "61"})
	require.Equal(t, []string{"5"}, ids(got))
}

func TestAssociatesSortedAndDeduplicated(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"bea", "Dana", domain.UnknownAssociate}, Associates(associateOrders()))
	require.Empty(t, Associates(nil))
}

func TestParseAssociates(t *testing.T) {
	t.Parallel()

	require.Nil(t, ParseAssociates(""))
	require.Nil(t, ParseAssociates(" , "))
	require.Equal(t, []string{"Dana", "Unknown", "bea"}, ParseAssociates("Dana, Unknown,,bea,Dana"))
}
