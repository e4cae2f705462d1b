package exporters

import (
	"fmt"
	"time"

	"github.com/fbz-tec/chxport/core/output"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/internal/logger"
)

type csvExporter struct{}

// Export writes rows as delimited text, header first.
func (e *csvExporter) Export(rows records.Rows, options ExportOptions) (int, error) {
	start := time.Now()

	delim := options.Delimiter
	if delim == 0 {
		delim = ','
	}

	logger.Debug("Preparing CSV export (delimiter=%q, noHeader=%v, compression=%s)",
		string(delim), options.NoHeader, options.Compression)

	writeCloser, err := output.CreateWriter(output.OutputConfig{
		Path:        options.OutputPath,
		Compression: options.Compression,
		Format:      FormatCSV,
	})
	if err != nil {
		return 0, err
	}
	defer writeCloser.Close()

	writer := records.NewDelimitedWriter(writeCloser, delim, rows.Columns())

	if !options.NoHeader {
		if err := writer.WriteHeader(); err != nil {
			return 0, err
		}
		logger.Debug("CSV headers written: %s", rows.Columns())
	}

	p := newProgress(options.OnProgress)
	for rows.Next() {
		if err := writer.Write(rows.Record()); err != nil {
			return p.count, fmt.Errorf("error writing row %d: %w", p.count+1, err)
		}
		p.add()

		if p.count%10000 == 0 {
			logger.Debug("%d rows written...", p.count)
		}
	}

	if err := rows.Err(); err != nil {
		return p.count, fmt.Errorf("error iterating rows: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return p.count, fmt.Errorf("error flushing CSV: %w", err)
	}

	if err := writeCloser.Close(); err != nil {
		return p.count, err
	}

	rowCount := p.done()
	logger.Debug("CSV export completed: %d rows written in %v", rowCount, time.Since(start).Round(time.Millisecond))
	return rowCount, nil
}

func init() {
	MustRegister(FormatCSV, func() Exporter { return &csvExporter{} })
}
