// Package export renders the entry table as a spreadsheet download.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"expenses/internal/core"
)

// SheetName is the worksheet holding the exported table.
const SheetName = "Entries"

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"Description", "Amount", "Category"}

// Exporter produces XLSX workbooks from table views.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// TableXLSX returns the workbook bytes for t: a header row, one row per
// visible entry and a Total row when the table shows one.
func (e *Exporter) TableXLSX(t core.Table) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, fmt.Errorf("sheet index: %w", err)
	}
	f.SetActiveSheet(index)

	row := 1
	write := func(col int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(SheetName, cell, v)
	}

	for i, h := range headers {
		if err := write(i+1, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	row++

	for _, r := range t.Rows {
		for col, v := range []any{r.Entry.Description, r.Entry.Amount, r.Entry.Category.Label()} {
			if err := write(col+1, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
		row++
	}

	if t.ShowTotal {
		if err := write(1, "Total"); err != nil {
			return nil, fmt.Errorf("write total: %w", err)
		}
		var total any = t.Total
		if t.TotalOverflow {
			total = t.TotalText()
		}
		if err := write(2, total); err != nil {
			return nil, fmt.Errorf("write total: %w", err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 36)
	_ = f.SetColWidth(SheetName, "B", "B", 14)
	_ = f.SetColWidth(SheetName, "C", "C", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("export.xlsx.ok",
		"filter", t.Filter.String(),
		"rows", len(t.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
