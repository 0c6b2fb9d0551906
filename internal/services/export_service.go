package services

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/export"
	"github.com/russellmoss/guest-count-check/internal/metrics"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

// ExportRecorder counts export outcomes.
type ExportRecorder interface {
	ExportRecorded(outcome string)
}

// ExportServiceDeps bundles collaborators required to construct the export service.
type ExportServiceDeps struct {
	Reports  ReportService
	Exporter *export.Exporter
	Metrics  ExportRecorder
	NewID    func() string
}

type exportService struct {
	reports  ReportService
	exporter *export.Exporter
	metrics  ExportRecorder
	newID    func() string
}

var _ ExportService = (*exportService)(nil)

// NewExportService assembles the spreadsheet export.
func NewExportService(deps ExportServiceDeps) (ExportService, error) {
	if deps.Reports == nil {
		return nil, errors.New("export service: report service is required")
	}
	exporter := deps.Exporter
	if exporter == nil {
		exporter = export.NewExporter()
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &exportService{
		reports:  deps.Reports,
		exporter: exporter,
		metrics:  deps.Metrics,
		newID:    newID,
	}, nil
}

func (s *exportService) Export(ctx context.Context, query ReportQuery) (ExportResult, error) {
	id := s.newID()
	ctx = requestctx.WithFields(ctx, zap.String("export_id", id))
	logger := requestctx.Logger(ctx)

	report, err := s.reports.MissingGuestCounts(ctx, query)
	if err != nil {
		if errors.Is(err, ErrNoOrders) {
			s.record(metrics.ExportEmpty)
		} else {
			s.record(metrics.ExportFailed)
		}
		return ExportResult{}, err
	}

	workbook, err := s.exporter.Export(report.Orders)
	if err != nil {
		if errors.Is(err, export.ErrEmptyExport) {
			s.record(metrics.ExportEmpty)
			logger.Info("export skipped: no orders missing a guest count")
		} else {
			s.record(metrics.ExportFailed)
			logger.Error("export rendering failed", zap.Error(err))
		}
		return ExportResult{}, err
	}

	s.record(metrics.ExportSucceeded)
	logger.Info("export rendered",
		zap.Int("rows", workbook.Rows),
		zap.Int("bytes", workbook.Buffer.Len()),
	)
	return ExportResult{ID: id, Workbook: workbook, Report: report}, nil
}

func (s *exportService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.ExportRecorded(outcome)
	}
}
