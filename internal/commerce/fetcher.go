package commerce

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

const (
	// DefaultPageSize is the number of orders requested per page.
	DefaultPageSize = 50
	// DefaultPageDelay throttles consecutive page requests to stay under upstream rate limits.
	DefaultPageDelay = 500 * time.Millisecond
	// DefaultMaxPages caps a single fetch; reaching it ends the fetch without error.
	DefaultMaxPages = 100
)

// StopReason records why pagination ended.
type StopReason string

const (
	// StopLastPage means the upstream returned an empty or short page.
	StopLastPage StopReason = "last_page"
	// StopSafetyLimit means the page ceiling was reached.
	StopSafetyLimit StopReason = "safety_limit"
)

// OrderLister fetches a single page of orders.
type OrderLister interface {
	ListOrders(ctx context.Context, params ListOrdersParams) (OrderPage, error)
}

// FetchObserver receives pagination telemetry. Implementations must be safe for concurrent use.
type FetchObserver interface {
	PageFetched(orders int)
	FetchFailed(operation string)
	FetchCompleted(orders int, stop string, elapsed time.Duration)
}

// FetchResult is the concatenation of every fetched page in upstream order.
type FetchResult struct {
	Orders        []domain.Order
	Pages         int
	Stop          StopReason
	UpstreamTotal int
}

// Sleeper waits for d. Returning an error aborts the fetch.
type Sleeper func(ctx context.Context, d time.Duration) error

// Fetcher walks the paged order list for a paid-date range.
type Fetcher struct {
	lister   OrderLister
	pageSize int
	delay    time.Duration
	maxPages int
	sleep    Sleeper
	observer FetchObserver
	clock    func() time.Time
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(size int) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.pageSize = size
		}
	}
}

// WithPageDelay overrides DefaultPageDelay. A zero delay disables throttling.
func WithPageDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d >= 0 {
			f.delay = d
		}
	}
}

// WithMaxPages overrides DefaultMaxPages.
func WithMaxPages(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxPages = n
		}
	}
}

// WithSleeper replaces the inter-page wait, primarily for tests.
func WithSleeper(s Sleeper) FetcherOption {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithObserver attaches pagination telemetry.
func WithObserver(o FetchObserver) FetcherOption {
	return func(f *Fetcher) {
		f.observer = o
	}
}

// WithFetcherClock injects a clock used for elapsed-time reporting.
func WithFetcherClock(clock func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// NewFetcher constructs a Fetcher over lister.
func NewFetcher(lister OrderLister, opts ...FetcherOption) (*Fetcher, error) {
	if lister == nil {
		return nil, errors.New("commerce: order lister is required")
	}
	f := &Fetcher{
		lister:   lister,
		pageSize: DefaultPageSize,
		delay:    DefaultPageDelay,
		maxPages: DefaultMaxPages,
		sleep:    sleepContext,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// FetchOrders requests pages sequentially until a short page or the page ceiling. Any page
// failure aborts the fetch with a *FetchError and discards the pages already read.
func (f *Fetcher) FetchOrders(ctx context.Context, dateRange domain.DateRange) (FetchResult, error) {
	if dateRange.IsZero() {
		return FetchResult{}, errors.New("commerce: date range requires from or to")
	}

	logger := requestctx.Logger(ctx).Named("fetcher")
	predicate := PaidDatePredicate(dateRange)
	started := f.clock()

	var result FetchResult
	for page := 1; ; page++ {
		if page > 1 && f.delay > 0 {
			if err := f.sleep(ctx, f.delay); err != nil {
				f.failed("list_orders")
				return FetchResult{}, newFetchError(page, err)
			}
		}

		resp, err := f.lister.ListOrders(ctx, ListOrdersParams{
			PaidDate: predicate,
			Page:     page,
			Limit:    f.pageSize,
		})
		if err != nil {
			f.failed("list_orders")
			logger.Warn("order page fetch failed", zap.Int("page", page), zap.Error(err))
			return FetchResult{}, newFetchError(page, err)
		}

		result.Pages = page
		result.Orders = append(result.Orders, resp.Orders...)
		if resp.Total > 0 {
			result.UpstreamTotal = resp.Total
		}
		if f.observer != nil {
			f.observer.PageFetched(len(resp.Orders))
		}
		logger.Debug("order page fetched",
			zap.Int("page", page),
			zap.Int("count", len(resp.Orders)),
			zap.Int("accumulated", len(result.Orders)),
		)

		if len(resp.Orders) < f.pageSize {
			result.Stop = StopLastPage
			break
		}
		if page >= f.maxPages {
			result.Stop = StopSafetyLimit
			logger.Warn("order pagination stopped at page ceiling",
				zap.Int("max_pages", f.maxPages),
				zap.Int("orders", len(result.Orders)),
			)
			break
		}
	}

	elapsed := f.clock().Sub(started)
	if f.observer != nil {
		f.observer.FetchCompleted(len(result.Orders), string(result.Stop), elapsed)
	}
	logger.Info("order fetch completed",
		zap.String("paid_date", predicate),
		zap.Int("pages", result.Pages),
		zap.Int("orders", len(result.Orders)),
		zap.String("stop", string(result.Stop)),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// PaidDatePredicate renders the upstream paid-date filter for r.
func PaidDatePredicate(r domain.DateRange) string {
	switch {
	case r.From != "" && r.To != "":
		return "btw:" + r.From + "|" + r.To
	case r.From != "":
		return "gte:" + r.From
	case r.To != "":
		return "lte:" + r.To
	default:
		return ""
	}
}

func (f *Fetcher) failed(op string) {
	if f.observer != nil {
		f.observer.FetchFailed(op)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
