package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/russellmoss/guest-count-check/internal/commerce"
	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/export"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order              = domain.Order
	DateRange          = domain.DateRange
	SystemHealthReport = domain.SystemHealthReport
)

// ErrNoOrders is returned when the upstream holds no paid orders for the requested range.
var ErrNoOrders = errors.New("services: no orders found for the date range")

// OrderFetcher walks every upstream page for a paid-date range.
type OrderFetcher interface {
	FetchOrders(ctx context.Context, dateRange domain.DateRange) (commerce.FetchResult, error)
}

// OrderReader returns a single upstream order document.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (json.RawMessage, error)
}

// ReportQuery is the caller's raw request. Dates are normalised by the service so every entry
// point applies the same validation.
type ReportQuery struct {
	From       string
	To         string
	Associates []string
	Search     string
}

// Report is the list of orders still missing a guest count.
type Report struct {
	Orders    []domain.Order
	Total     int
	DateRange domain.DateRange
	Fetched   int
	Pages     int
	Stop      commerce.StopReason
}

// AssociateReport lists who sold the orders that still need a guest count.
type AssociateReport struct {
	Associates []string
	Total      int
	DateRange  domain.DateRange
}

// ReportService produces the guest-count audit.
type ReportService interface {
	MissingGuestCounts(ctx context.Context, query ReportQuery) (Report, error)
	Associates(ctx context.Context, query ReportQuery) (AssociateReport, error)
	OrderDetail(ctx context.Context, orderID string) (json.RawMessage, error)
}

// ExportResult is a rendered workbook together with the id used to correlate it in logs.
type ExportResult struct {
	ID       string
	Workbook *export.Workbook
	Report   Report
}

// ExportService renders the audit as a spreadsheet.
type ExportService interface {
	Export(ctx context.Context, query ReportQuery) (ExportResult, error)
}

// ConnectionStatus is the outcome of an upstream connectivity check.
type ConnectionStatus struct {
	Success    bool
	OrderCount int
	Err        error
}

// ConnectionService checks that the upstream credentials work.
type ConnectionService interface {
	Check(ctx context.Context) ConnectionStatus
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
