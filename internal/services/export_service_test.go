package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/russellmoss/guest-count-check/internal/commerce"
	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/export"
	"github.com/russellmoss/guest-count-check/internal/metrics"
)

type recordingExportMetrics struct {
	outcomes []string
}

func (r *recordingExportMetrics) ExportRecorded(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func newTestExportService(t *testing.T, fetcher *stubFetcher, recorder ExportRecorder) ExportService {
	t.Helper()
	svc, err := NewExportService(ExportServiceDeps{
		Reports: newTestReportService(t, fetcher),
		Metrics: recorder,
		NewID:   func() string { return "01HZY3V7Q9K2M4N6P8R0S2T4V6" },
	})
	require.NoError(t, err)
	return svc
}

func TestExportServiceRendersWorkbook(t *testing.T) {
	paid := time.Date(2024, 1, 16, 20, 0, 0, 0, time.UTC)
	orders := []domain.Order{{ID: "a", OrderNumber: "10452", PaidAt: &paid, Total: 123456}}
	recorder := &recordingExportMetrics{}
	svc := newTestExportService(t, &stubFetcher{result: commerce.FetchResult{Orders: orders}}, recorder)

	result, err := svc.Export(context.Background(), ReportQuery{From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)
	require.Equal(t, "01HZY3V7Q9K2M4N6P8R0S2T4V6", result.ID)
	require.Equal(t, 1, result.Workbook.Rows)
	require.NotZero(t, result.Workbook.Buffer.Len())
	require.Equal(t, export.DefaultFilename, result.Workbook.Filename)
	require.Equal(t, []string{metrics.ExportSucceeded}, recorder.outcomes)
}

func TestExportServiceEmptyAfterFilter(t *testing.T) {
	orders := []domain.Order{{ID: "a", GuestCount: intPtr(2)}}
	recorder := &recordingExportMetrics{}
	svc := newTestExportService(t, &stubFetcher{result: commerce.FetchResult{Orders: orders}}, recorder)

	_, err := svc.Export(context.Background(), ReportQuery{From: "2024-01-01"})
	require.ErrorIs(t, err, export.ErrEmptyExport)
	require.Equal(t, []string{metrics.ExportEmpty}, recorder.outcomes)
}

func TestExportServiceFailures(t *testing.T) {
	recorder := &recordingExportMetrics{}
	svc := newTestExportService(t, &stubFetcher{}, recorder)
	_, err := svc.Export(context.Background(), ReportQuery{From: "2024-01-01"})
	require.ErrorIs(t, err, ErrNoOrders)

	svc = newTestExportService(t, &stubFetcher{err: &commerce.FetchError{Page: 1, StatusCode: 503}}, recorder)
	_, err = svc.Export(context.Background(), ReportQuery{From: "2024-01-01"})
	require.ErrorIs(t, err, commerce.ErrUpstream)

	require.Equal(t, []string{metrics.ExportEmpty, metrics.ExportFailed}, recorder.outcomes)
}

func TestNewExportServiceDefaults(t *testing.T) {
	_, err := NewExportService(ExportServiceDeps{})
	require.Error(t, err, "report service is required")

	svc, err := NewExportService(ExportServiceDeps{Reports: newTestReportService(t, &stubFetcher{})})
	require.NoError(t, err)
	require.Len(t, svc.(*exportService).newID(), 26, "ids are ULIDs")
}
