package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/exporters"
	"github.com/fbz-tec/chxport/core/output"
	"github.com/fbz-tec/chxport/core/query"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/core/validation"
	"github.com/fbz-tec/chxport/internal/logger"
)

type exportJob struct {
	conn        config.Connection
	sql         string
	cols        records.ColumnSelection
	file        records.FlatFileConfig
	format      string
	compression string
	noHeader    bool
	onProgress  ProgressFunc
}

// ExportTable writes the selected columns of a table to req.File.
// The query is sent before the output file is created, so a rejected query
// leaves no header-only file behind.
func (s *Service) ExportTable(ctx context.Context, req ExportRequest) (Result, error) {
	if err := validation.ValidateIdentifier("table", req.Table); err != nil {
		return Result{}, fmt.Errorf("failed to export data: %w", err)
	}

	res, err := s.export(ctx, exportJob{
		conn:        req.Connection,
		sql:         query.BuildSelect(req.Table, req.Columns),
		cols:        req.Columns,
		file:        req.File,
		format:      req.Format,
		compression: req.Compression,
		noHeader:    req.NoHeader,
		onProgress:  req.OnProgress,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to export data: %w", err)
	}

	res.Message = fmt.Sprintf("Successfully exported %d records to %s", res.Rows, res.Path)
	return res, nil
}

// ExportJoin writes the selected columns of a source table, optionally
// joined with one other table, to req.File.
func (s *Service) ExportJoin(ctx context.Context, req JoinRequest) (Result, error) {
	if err := validation.ValidateJoinConfig(req.Join); err != nil {
		return Result{}, fmt.Errorf("failed to join tables: %w", err)
	}

	res, err := s.export(ctx, exportJob{
		conn:        req.Connection,
		sql:         query.BuildJoin(req.Join, req.Columns),
		cols:        req.Columns,
		file:        req.File,
		format:      req.Format,
		compression: req.Compression,
		noHeader:    req.NoHeader,
		onProgress:  req.OnProgress,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to join tables: %w", err)
	}

	res.Message = fmt.Sprintf("Successfully exported %d records from joined tables to %s", res.Rows, res.Path)
	return res, nil
}

// export runs job.sql with TabSeparated output and streams the decoded rows
// into the requested file format.
func (s *Service) export(ctx context.Context, job exportJob) (Result, error) {
	start := time.Now()

	if err := validation.ValidateColumns(job.cols); err != nil {
		return Result{}, err
	}
	if job.file.FilePath == "" {
		return Result{}, errs.Formatf("output file path cannot be empty")
	}
	comma, err := job.file.Comma()
	if err != nil {
		return Result{}, err
	}
	exp, err := exporters.Get(job.format)
	if err != nil {
		return Result{}, err
	}

	body, err := s.exec.Stream(ctx, job.conn, query.WithTabSeparated(job.sql))
	if err != nil {
		return Result{}, err
	}
	rows := records.NewTSVRows(body, job.cols)
	defer rows.Close()

	n, err := exp.Export(rows, exporters.ExportOptions{
		Format:      job.format,
		Delimiter:   comma,
		Compression: job.compression,
		OutputPath:  job.file.FilePath,
		NoHeader:    job.noHeader,
		OnProgress:  job.onProgress,
	})
	if err != nil {
		return Result{}, err
	}

	path := output.OutputConfig{
		Path:        job.file.FilePath,
		Compression: job.compression,
		Format:      job.format,
	}.FinalPath()

	logger.Debug("Export of %d rows to %s took %v", n, path, time.Since(start).Round(time.Millisecond))
	return Result{Rows: n, Path: path}, nil
}
