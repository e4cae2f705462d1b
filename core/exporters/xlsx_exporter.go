package exporters

import (
	"fmt"
	"time"

	"github.com/fbz-tec/chxport/core/formatters"
	"github.com/fbz-tec/chxport/core/output"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/xuri/excelize/v2"
)

// maxSheetRows is the row limit of one XLSX sheet.
const maxSheetRows = 1_048_576

type xlsxExporter struct{}

// Export writes rows to an Excel workbook, starting a new sheet whenever
// the current one is full.
func (e *xlsxExporter) Export(rows records.Rows, options ExportOptions) (int, error) {
	start := time.Now()
	logger.Debug("Preparing XLSX export (compression=%s)", options.Compression)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file: %v", err)
		}
	}()

	cols := rows.Columns()

	var headerStyleID int
	if !options.NoHeader {
		styleID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			logger.Warn("Failed to create header style: %v", err)
		} else {
			headerStyleID = styleID
		}
	}

	sheetIndex := 1
	sw, currentRow, err := initSheet(f, sheetIndex, cols, options.NoHeader, headerStyleID)
	if err != nil {
		return 0, err
	}

	p := newProgress(options.OnProgress)
	cells := make([]any, len(cols))

	for rows.Next() {
		if currentRow > maxSheetRows {
			if err := sw.Flush(); err != nil {
				return p.count, fmt.Errorf("error flushing sheet %d: %w", sheetIndex, err)
			}
			sheetIndex++
			logger.Debug("Created new sheet Sheet%d (row limit reached)", sheetIndex)
			if sw, currentRow, err = initSheet(f, sheetIndex, cols, options.NoHeader, headerStyleID); err != nil {
				return p.count, err
			}
		}

		for i, v := range rows.Record().Values(cols) {
			cells[i] = formatters.FormatXLSXValue(v)
		}

		cell, _ := excelize.CoordinatesToCellName(1, currentRow)
		if err := sw.SetRow(cell, cells); err != nil {
			return p.count, fmt.Errorf("error writing row %d: %w", currentRow, err)
		}
		currentRow++
		p.add()
	}

	if err := rows.Err(); err != nil {
		return p.count, fmt.Errorf("error iterating rows: %w", err)
	}

	if err := sw.Flush(); err != nil {
		return p.count, fmt.Errorf("error flushing stream: %w", err)
	}

	writeCloser, err := output.CreateWriter(output.OutputConfig{
		Path:        options.OutputPath,
		Compression: options.Compression,
		Format:      FormatXLSX,
	})
	if err != nil {
		return p.count, err
	}
	defer writeCloser.Close()

	if err := f.Write(writeCloser); err != nil {
		return p.count, fmt.Errorf("error writing Excel file: %w", err)
	}
	if err := writeCloser.Close(); err != nil {
		return p.count, err
	}

	rowCount := p.done()
	logger.Debug("XLSX export completed: %d rows in %.2fs", rowCount, time.Since(start).Seconds())
	return rowCount, nil
}

// initSheet creates (or reuses) SheetN, writes the header row unless
// disabled, and returns a stream writer positioned on the first data row.
func initSheet(f *excelize.File, index int, cols records.ColumnSelection, noHeader bool, headerStyleID int) (*excelize.StreamWriter, int, error) {
	// A new workbook already holds Sheet1.
	name := fmt.Sprintf("Sheet%d", index)
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return nil, 0, fmt.Errorf("failed to create new sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating stream writer: %w", err)
	}

	row := 1
	if !noHeader {
		header := make([]any, len(cols))
		for i, col := range cols {
			header[i] = excelize.Cell{Value: col, StyleID: headerStyleID}
		}
		if err := sw.SetRow("A1", header); err != nil {
			return nil, 0, fmt.Errorf("error writing headers: %w", err)
		}
		row++
	}
	return sw, row, nil
}

func init() {
	MustRegister(FormatXLSX, func() Exporter { return &xlsxExporter{} })
}
