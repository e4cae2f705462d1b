package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/query"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/core/validation"
	"github.com/fbz-tec/chxport/internal/logger"
)

// ColumnInfo is one row of a table description.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ListTables returns the tables of conn.Database.
func (s *Service) ListTables(ctx context.Context, conn config.Connection) ([]string, error) {
	if err := validation.ValidateIdentifier("database", conn.Database); err != nil {
		return nil, fmt.Errorf("failed to fetch tables: %w", err)
	}

	body, err := s.exec.Query(ctx, conn, query.ShowTables(conn.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tables: %w", err)
	}

	tables := []string{}
	for _, line := range strings.Split(body, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			tables = append(tables, name)
		}
	}
	logger.Debug("Found %d tables in %s", len(tables), conn.Database)
	return tables, nil
}

// ListColumns returns the name and type of every column of table.
func (s *Service) ListColumns(ctx context.Context, conn config.Connection, table string) ([]ColumnInfo, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return nil, fmt.Errorf("failed to fetch columns: %w", err)
	}

	body, err := s.exec.Query(ctx, conn, query.Describe(table))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch columns: %w", err)
	}

	columns := []ColumnInfo{}
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		columns = append(columns, ColumnInfo{
			Name: strings.TrimSpace(parts[0]),
			Type: strings.TrimSpace(parts[1]),
		})
	}
	return columns, nil
}

// PreviewStore returns up to query.PreviewLimit rows of table through the
// typed client, each value rendered as text in column order.
func (s *Service) PreviewStore(ctx context.Context, conn config.Connection, table string, cols records.ColumnSelection) ([][]string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return nil, fmt.Errorf("failed to preview data: %w", err)
	}
	if err := validation.ValidateColumns(cols); err != nil {
		return nil, fmt.Errorf("failed to preview data: %w", err)
	}

	rows, err := s.previewer.Preview(ctx, conn, query.BuildPreview(table, cols))
	if err != nil {
		return nil, fmt.Errorf("failed to preview data: %w", err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}

// PreviewFile returns up to query.PreviewLimit records of a delimited file.
// A column absent from the header fails with *errs.ColumnNotFoundError.
func (s *Service) PreviewFile(cfg records.FlatFileConfig, cols records.ColumnSelection) ([]records.Record, error) {
	if err := cols.Validate(); err != nil {
		return nil, fmt.Errorf("failed to preview file data: %w", err)
	}

	rows, err := openFileRows(cfg, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to preview file data: %w", err)
	}
	defer rows.Close()

	out := []records.Record{}
	for len(out) < query.PreviewLimit && rows.Next() {
		out = append(out, rows.Record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to preview file data: %w", err)
	}

	logger.Debug("Previewed %d records from %s", len(out), cfg.FilePath)
	return out, nil
}

// FileHeaders returns the header row of a delimited file.
func (s *Service) FileHeaders(cfg records.FlatFileConfig) ([]string, error) {
	header, err := records.ReadHeader(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read file headers: %w", err)
	}
	return header, nil
}

// ValidateFile parses the whole file and returns its line count.
func (s *Service) ValidateFile(cfg records.FlatFileConfig) (int, error) {
	n, err := records.ValidateFile(cfg)
	if err != nil {
		return n, fmt.Errorf("invalid file %s: %w", cfg.FilePath, err)
	}
	return n, nil
}

func openFileRows(cfg records.FlatFileConfig, cols records.ColumnSelection) (*records.FileRows, error) {
	if cfg.FilePath == "" {
		return nil, errs.Formatf("file path cannot be empty")
	}
	return records.OpenFile(cfg, cols)
}
