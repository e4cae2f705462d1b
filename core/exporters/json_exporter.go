package exporters

import (
	"fmt"
	"io"
	"time"

	"github.com/fbz-tec/chxport/core/encoders"
	"github.com/fbz-tec/chxport/core/output"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/internal/logger"
)

type jsonExporter struct{}

// Export writes rows as a JSON array of objects, one per record.
func (e *jsonExporter) Export(rows records.Rows, options ExportOptions) (int, error) {
	start := time.Now()
	logger.Debug("Preparing JSON export (indent=2 spaces, compression=%s)", options.Compression)

	writeCloser, err := output.CreateWriter(output.OutputConfig{
		Path:        options.OutputPath,
		Compression: options.Compression,
		Format:      FormatJSON,
	})
	if err != nil {
		return 0, err
	}
	defer writeCloser.Close()

	if _, err := io.WriteString(writeCloser, "[\n"); err != nil {
		return 0, fmt.Errorf("error writing start of JSON array: %w", err)
	}

	enc := encoders.NewOrderedJsonEncoder("  ")
	p := newProgress(options.OnProgress)

	for rows.Next() {
		if p.count > 0 {
			if _, err := io.WriteString(writeCloser, ",\n"); err != nil {
				return p.count, fmt.Errorf("error writing comma for row %d: %w", p.count, err)
			}
		}

		obj, err := enc.EncodeRow(rows.Record())
		if err != nil {
			return p.count, fmt.Errorf("error encoding JSON for row %d: %w", p.count+1, err)
		}
		if _, err := io.WriteString(writeCloser, "  "); err != nil {
			return p.count, err
		}
		if _, err := writeCloser.Write(obj); err != nil {
			return p.count, fmt.Errorf("error writing JSON object for row %d: %w", p.count+1, err)
		}
		p.add()
	}

	if err := rows.Err(); err != nil {
		return p.count, fmt.Errorf("error iterating rows: %w", err)
	}

	if _, err := io.WriteString(writeCloser, "\n]\n"); err != nil {
		return p.count, fmt.Errorf("error writing end of JSON array: %w", err)
	}

	if err := writeCloser.Close(); err != nil {
		return p.count, err
	}

	rowCount := p.done()
	logger.Debug("JSON export completed: %d rows written in %v", rowCount, time.Since(start))
	return rowCount, nil
}

func init() {
	MustRegister(FormatJSON, func() Exporter { return &jsonExporter{} })
}
