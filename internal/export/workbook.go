// Package export renders audited orders as an xlsx workbook held in memory.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/russellmoss/guest-count-check/internal/dates"
	"github.com/russellmoss/guest-count-check/internal/domain"
)

const (
	// DefaultFilename is the attachment name used for downloads.
	DefaultFilename = "orders-missing-guest-count.xlsx"
	// DefaultSheetName names the single worksheet.
	DefaultSheetName = "Missing Guest Counts"
	// ContentType is the MIME type of an xlsx workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// MissingGuestCount is written in place of an absent or zero guest count.
	MissingGuestCount = "Missing"

	currencyFormat = "$#,##0.00"
	maxSheetName   = 31
)

// ErrEmptyExport is returned when there are no records to write.
var ErrEmptyExport = errors.New("export: no orders to export")

var headers = []string{"Order Number", "Associate", "Order Date", "Total", "Guest Count"}

var columnWidths = []float64{18, 24, 14, 14, 14}

// Record is the flat projection of an order written as one worksheet row.
type Record struct {
	OrderNumber string
	Associate   string
	OrderDate   string
	Total       int64
	GuestCount  *int
}

// Project maps orders to records, preserving order.
func Project(orders []domain.Order) []Record {
	records := make([]Record, 0, len(orders))
	for _, order := range orders {
		record := Record{
			OrderNumber: order.OrderNumber,
			Associate:   order.AssociateName(),
			OrderDate:   dates.Format(order.ReportDate()),
			Total:       order.Total,
		}
		if order.HasGuestCount() {
			count := *order.GuestCount
			record.GuestCount = &count
		}
		records = append(records, record)
	}
	return records
}

// Workbook is a rendered export ready to stream to a client.
type Workbook struct {
	Filename    string
	ContentType string
	Rows        int
	Buffer      *bytes.Buffer
}

// Exporter renders workbooks. It holds no per-export state and is safe for concurrent use.
type Exporter struct {
	filename  string
	sheetName string
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithFilename overrides DefaultFilename.
func WithFilename(name string) Option {
	return func(e *Exporter) {
		if name = strings.TrimSpace(name); name != "" {
			e.filename = name
		}
	}
}

// WithSheetName overrides DefaultSheetName. Names longer than the xlsx limit are truncated.
func WithSheetName(name string) Option {
	return func(e *Exporter) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if runes := []rune(name); len(runes) > maxSheetName {
			name = string(runes[:maxSheetName])
		}
		e.sheetName = name
	}
}

// NewExporter constructs an Exporter.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{filename: DefaultFilename, sheetName: DefaultSheetName}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Export writes orders to a single-sheet workbook. An empty input yields ErrEmptyExport.
func (e *Exporter) Export(orders []domain.Order) (*Workbook, error) {
	records := Project(orders)
	if len(records) == 0 {
		return nil, ErrEmptyExport
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := e.sheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("export: name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E7E6E6"}},
	})
	if err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}
	numFmt := currencyFormat
	currencyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("export: currency style: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("export: header row: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}

	for i, record := range records {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			record.OrderNumber,
			record.Associate,
			record.OrderDate,
			decimal.New(record.Total, -2).InexactFloat64(),
			guestCountValue(record.GuestCount),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("export: row %d: %w", row, err)
		}
	}

	lastRow := len(records) + 1
	if err := f.SetCellStyle(sheet, "D2", fmt.Sprintf("D%d", lastRow), currencyStyle); err != nil {
		return nil, fmt.Errorf("export: currency column: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return nil, fmt.Errorf("export: column width: %w", err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("export: freeze header: %w", err)
	}
	lastCell, err := excelize.CoordinatesToCellName(len(headers), lastRow)
	if err != nil {
		return nil, err
	}
	if err := f.AutoFilter(sheet, "A1:"+lastCell, nil); err != nil {
		return nil, fmt.Errorf("export: auto filter: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return &Workbook{
		Filename:    e.filename,
		ContentType: ContentType,
		Rows:        len(records),
		Buffer:      buf,
	}, nil
}

func guestCountValue(count *int) interface{} {
	if count == nil {
		return MissingGuestCount
	}
	return *count
}
