package commerce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russellmoss/guest-count-check/internal/domain"
)

type fakeLister struct {
	mu    sync.Mutex
	pages func(page int) (OrderPage, error)
	calls []ListOrdersParams
}

func (f *fakeLister) ListOrders(_ context.Context, params ListOrdersParams) (OrderPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.mu.Unlock()
	return f.pages(params.Page)
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

type fakeObserver struct {
	pages     int
	failures  []string
	completed int
	stop      string
}

func (o *fakeObserver) PageFetched(int) { o.pages++ }

func (o *fakeObserver) FetchFailed(op string) { o.failures = append(o.failures, op) }

func (o *fakeObserver) FetchCompleted(n int, stop string, _ time.Duration) {
	o.completed = n
	o.stop = stop
}

func ordersPage(page, size int) OrderPage {
	orders := make([]domain.Order, size)
	for i := range orders {
		orders[i] = domain.Order{ID: fmt.Sprintf("p%d-%d", page, i), OrderNumber: fmt.Sprintf("%d%03d", page, i)}
	}
	return OrderPage{Orders: orders}
}

func TestFetchOrdersStopsOnShortPage(t *testing.T) {
	t.Parallel()

	sizes := []int{50, 50, 37}
	lister := &fakeLister{pages: func(page int) (OrderPage, error) {
		return ordersPage(page, sizes[page-1]), nil
	}}
	sleeper := &recordingSleeper{}
	observer := &fakeObserver{}

	fetcher, err := NewFetcher(lister, WithSleeper(sleeper.sleep), WithObserver(observer))
	require.NoError(t, err)

	result, err := fetcher.FetchOrders(context.Background(), domain.DateRange{From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)

	require.Len(t, result.Orders, 137)
	require.Equal(t, 3, result.Pages)
	require.Equal(t, StopLastPage, result.Stop)
	require.Len(t, lister.calls, 3)
	require.Equal(t, []time.Duration{DefaultPageDelay, DefaultPageDelay}, sleeper.waits)

	for i, call := range lister.calls {
		assert.Equal(t, i+1, call.Page)
		assert.Equal(t, DefaultPageSize, call.Limit)
		assert.Equal(t, "btw:2024-01-01|2024-01-31", call.PaidDate)
	}

	// upstream order is preserved across pages
	assert.Equal(t, "p1-0", result.Orders[0].ID)
	assert.Equal(t, "p2-0", result.Orders[50].ID)
	assert.Equal(t, "p3-36", result.Orders[136].ID)

	assert.Equal(t, 3, observer.pages)
	assert.Equal(t, 137, observer.completed)
	assert.Equal(t, string(StopLastPage), observer.stop)
}

func TestFetchOrdersSafetyLimit(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: func(page int) (OrderPage, error) {
		return ordersPage(page, 50), nil
	}}
	sleeper := &recordingSleeper{}

	fetcher, err := NewFetcher(lister, WithSleeper(sleeper.sleep))
	require.NoError(t, err)

	result, err := fetcher.FetchOrders(context.Background(), domain.DateRange{From: "2024-01-01"})
	require.NoError(t, err)
	require.Len(t, result.Orders, 5000)
	require.Equal(t, 100, result.Pages)
	require.Equal(t, StopSafetyLimit, result.Stop)
	require.Len(t, lister.calls, 100)
	require.Len(t, sleeper.waits, 99)
}

func TestFetchOrdersEmptyFirstPage(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: func(int) (OrderPage, error) {
		return OrderPage{}, nil
	}}
	sleeper := &recordingSleeper{}

	fetcher, err := NewFetcher(lister, WithSleeper(sleeper.sleep))
	require.NoError(t, err)

	result, err := fetcher.FetchOrders(context.Background(), domain.DateRange{To: "2024-01-31"})
	require.NoError(t, err)
	require.Empty(t, result.Orders)
	require.Equal(t, 1, result.Pages)
	require.Equal(t, StopLastPage, result.Stop)
	require.Empty(t, sleeper.waits)
	require.Equal(t, "lte:2024-01-31", lister.calls[0].PaidDate)
}

func TestFetchOrdersFailureDiscardsPartialResults(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: func(page int) (OrderPage, error) {
		if page == 2 {
			return OrderPage{}, &UpstreamError{Op: "list orders", StatusCode: 429, Body: `{"message":"slow down"}`}
		}
		return ordersPage(page, 50), nil
	}}
	observer := &fakeObserver{}

	fetcher, err := NewFetcher(lister, WithPageDelay(0), WithObserver(observer))
	require.NoError(t, err)

	result, err := fetcher.FetchOrders(context.Background(), domain.DateRange{From: "2024-01-01", To: "2024-01-31"})
	require.Error(t, err)
	require.Empty(t, result.Orders)
	require.Len(t, lister.calls, 2)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 2, fetchErr.Page)
	require.Equal(t, 429, fetchErr.StatusCode)
	require.Equal(t, `{"message":"slow down"}`, fetchErr.Body)
	require.True(t, errors.Is(err, ErrUpstream))
	require.Equal(t, []string{"list_orders"}, observer.failures)
}

func TestFetchOrdersRequiresRange(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: func(int) (OrderPage, error) { return OrderPage{}, nil }}
	fetcher, err := NewFetcher(lister)
	require.NoError(t, err)

	_, err = fetcher.FetchOrders(context.Background(), domain.DateRange{})
	require.Error(t, err)
	require.Empty(t, lister.calls)
}

func TestPaidDatePredicate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "btw:2024-01-01|2024-01-31", PaidDatePredicate(domain.DateRange{From: "2024-01-01", To: "2024-01-31"}))
	require.Equal(t, "gte:2024-01-01", PaidDatePredicate(domain.DateRange{From: "2024-01-01"}))
	require.Equal(t, "lte:2024-01-31", PaidDatePredicate(domain.DateRange{To: "2024-01-31"}))
	require.Empty(t, PaidDatePredicate(domain.DateRange{}))
}

func TestNewFetcherRequiresLister(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher(nil)
	require.Error(t, err)
}
