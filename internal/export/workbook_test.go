package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/russellmoss/guest-count-check/internal/domain"
)

func timePtr(t time.Time) *time.Time { return &t }

func sampleOrders() []domain.Order {
	zero := 0
	return []domain.Order{
		{
			OrderNumber:    "10452",
			PaidAt:         timePtr(time.Date(2024, 1, 15, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))),
			SalesAssociate: &domain.SalesAssociate{Name: "Dana"},
			Total:          123456,
			GuestCount:     &zero,
		},
		{
			OrderNumber: "10453",
			OrderDate:   timePtr(time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)),
			Total:       4872,
		},
	}
}

func TestExportEmptyIsRejected(t *testing.T) {
	t.Parallel()

	wb, err := NewExporter().Export(nil)
	require.ErrorIs(t, err, ErrEmptyExport)
	require.Nil(t, wb)
}

func TestExportWritesSingleSheet(t *testing.T) {
	t.Parallel()

	wb, err := NewExporter().Export(sampleOrders())
	require.NoError(t, err)
	require.Equal(t, DefaultFilename, wb.Filename)
	require.Equal(t, ContentType, wb.ContentType)
	require.Equal(t, 2, wb.Rows)
	require.NotZero(t, wb.Buffer.Len())

	f, err := excelize.OpenReader(bytes.NewReader(wb.Buffer.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{DefaultSheetName}, f.GetSheetList())

	rows, err := f.GetRows(DefaultSheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Order Number", "Associate", "Order Date", "Total", "Guest Count"},
		{"10452", "Dana", "2024-01-16", "1234.56", "Missing"},
		{"10453", "Unknown", "2024-01-20", "48.72", "Missing"},
	}, rows)
}

func TestExportRecordsGuestCount(t *testing.T) {
	t.Parallel()

	four := 4
	records := Project([]domain.Order{{OrderNumber: "1", GuestCount: &four}})
	require.Len(t, records, 1)
	require.Equal(t, 4, *records[0].GuestCount)
	require.Equal(t, domain.UnknownAssociate, records[0].Associate)
	require.Empty(t, records[0].OrderDate)
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	wb, err := NewExporter(
		WithFilename("audit.xlsx"),
		WithSheetName("An unusually long worksheet name for the audit"),
	).Export(sampleOrders())
	require.NoError(t, err)
	require.Equal(t, "audit.xlsx", wb.Filename)

	f, err := excelize.OpenReader(wb.Buffer)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{"An unusually long worksheet nam"}, f.GetSheetList())
}
