package services

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/dates"
	"github.com/russellmoss/guest-count-check/internal/guestcount"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

// ReportServiceDeps bundles collaborators required to construct the report service.
type ReportServiceDeps struct {
	Fetcher    OrderFetcher
	Orders     OrderReader
	Exclusions guestcount.ExclusionSet
}

type reportService struct {
	fetcher    OrderFetcher
	orders     OrderReader
	exclusions guestcount.ExclusionSet
}

var _ ReportService = (*reportService)(nil)

// NewReportService assembles the audit pipeline: fetch, filter, refine.
func NewReportService(deps ReportServiceDeps) (ReportService, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("report service: order fetcher is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("report service: order reader is required")
	}
	return &reportService{
		fetcher:    deps.Fetcher,
		orders:     deps.Orders,
		exclusions: deps.Exclusions,
	}, nil
}

func (s *reportService) MissingGuestCounts(ctx context.Context, query ReportQuery) (Report, error) {
	report, err := s.missing(ctx, query)
	if err != nil {
		return Report{}, err
	}

	report.Orders = guestcount.Refine(report.Orders, guestcount.Refinement{
		Associates: query.Associates,
		Search:     query.Search,
	})
	report.Total = len(report.Orders)

	requestctx.Logger(ctx).Info("guest count report built",
		zap.String("from", report.DateRange.From),
		zap.String("to", report.DateRange.To),
		zap.Int("fetched", report.Fetched),
		zap.Int("missing", report.Total),
	)
	return report, nil
}

func (s *reportService) Associates(ctx context.Context, query ReportQuery) (AssociateReport, error) {
	report, err := s.missing(ctx, query)
	if err != nil {
		return AssociateReport{}, err
	}
	names := guestcount.Associates(report.Orders)
	return AssociateReport{
		Associates: names,
		Total:      len(names),
		DateRange:  report.DateRange,
	}, nil
}

func (s *reportService) OrderDetail(ctx context.Context, orderID string) (json.RawMessage, error) {
	return s.orders.GetOrder(ctx, orderID)
}

// missing validates the range, fetches every page and keeps orders that still need a guest
// count. The fetch is detached from caller cancellation so a started walk finishes or fails on
// its own; the upstream client timeout bounds each page.
func (s *reportService) missing(ctx context.Context, query ReportQuery) (Report, error) {
	dateRange, err := dates.NewRange(query.From, query.To)
	if err != nil {
		return Report{}, err
	}

	result, err := s.fetcher.FetchOrders(context.WithoutCancel(ctx), dateRange)
	if err != nil {
		return Report{}, err
	}
	if len(result.Orders) == 0 {
		return Report{}, ErrNoOrders
	}

	missing := guestcount.Filter(result.Orders, s.exclusions)
	return Report{
		Orders:    missing,
		Total:     len(missing),
		DateRange: dateRange,
		Fetched:   len(result.Orders),
		Pages:     result.Pages,
		Stop:      result.Stop,
	}, nil
}
