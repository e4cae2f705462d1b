package exporters

import (
	"fmt"
	"time"

	"github.com/fbz-tec/chxport/core/encoders"
	"github.com/fbz-tec/chxport/core/output"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/internal/logger"
	"gopkg.in/yaml.v3"
)

type yamlExporter struct{}

// Export writes rows as a YAML sequence of mappings. The document is built
// in memory and encoded once rows are drained.
func (e *yamlExporter) Export(rows records.Rows, options ExportOptions) (int, error) {
	start := time.Now()
	logger.Debug("Preparing YAML export (compression=%s)", options.Compression)

	writeCloser, err := output.CreateWriter(output.OutputConfig{
		Path:        options.OutputPath,
		Compression: options.Compression,
		Format:      FormatYAML,
	})
	if err != nil {
		return 0, err
	}
	defer writeCloser.Close()

	rootSeq := &yaml.Node{Kind: yaml.SequenceNode}
	rowEncoder := encoders.NewOrderedYamlEncoder()
	p := newProgress(options.OnProgress)

	for rows.Next() {
		node, err := rowEncoder.EncodeRow(rows.Record())
		if err != nil {
			return p.count, fmt.Errorf("error encoding YAML row %d: %w", p.count+1, err)
		}
		rootSeq.Content = append(rootSeq.Content, node)
		p.add()
	}

	if err := rows.Err(); err != nil {
		return p.count, fmt.Errorf("error iterating rows: %w", err)
	}

	enc := yaml.NewEncoder(writeCloser)
	enc.SetIndent(2)
	if err := enc.Encode(rootSeq); err != nil {
		return p.count, fmt.Errorf("error writing YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return p.count, fmt.Errorf("error writing YAML: %w", err)
	}
	if err := writeCloser.Close(); err != nil {
		return p.count, err
	}

	rowCount := p.done()
	logger.Debug("YAML export completed: %d rows written in %v", rowCount, time.Since(start))
	return rowCount, nil
}

func init() {
	MustRegister(FormatYAML, func() Exporter { return &yamlExporter{} })
}
