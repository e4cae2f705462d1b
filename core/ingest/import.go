package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/query"
	"github.com/fbz-tec/chxport/core/validation"
	"github.com/fbz-tec/chxport/internal/logger"
)

// Import loads req.File into req.Table. N rows produce ceil(N/BatchSize)
// INSERT statements. Rows of batches already sent stay in the table when a
// later batch fails.
func (s *Service) Import(ctx context.Context, req ImportRequest) (Result, error) {
	n, err := s.importFile(ctx, req)
	if err != nil {
		return Result{Rows: n}, fmt.Errorf("failed to import data: %w", err)
	}

	if removed, err := s.RemoveUpload(req.File.FilePath); err != nil {
		logger.Warn("Could not remove uploaded file %s: %v", req.File.FilePath, err)
	} else if removed {
		logger.Debug("Removed uploaded file %s", req.File.FilePath)
	}

	return Result{
		Rows:    n,
		Path:    req.File.FilePath,
		Message: fmt.Sprintf("Successfully imported %d records from %s", n, req.File.FilePath),
	}, nil
}

func (s *Service) importFile(ctx context.Context, req ImportRequest) (int, error) {
	start := time.Now()

	if err := validation.ValidateIdentifier("table", req.Table); err != nil {
		return 0, err
	}
	if err := validation.ValidateColumns(req.Columns); err != nil {
		return 0, err
	}

	rows, err := openFileRows(req.File, req.Columns)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	create := query.BuildCreateTable(req.Table, req.Columns)
	if _, err := s.exec.Query(ctx, req.Connection, create); err != nil {
		return 0, fmt.Errorf("error creating table %s: %w", req.Table, err)
	}

	batch := make([]string, 0, BatchSize)
	total, statements := 0, 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		insert := query.BuildInsert(req.Table, req.Columns, batch)
		if _, err := s.exec.Query(ctx, req.Connection, insert); err != nil {
			return fmt.Errorf("error inserting batch %d (%d rows): %w", statements+1, len(batch), err)
		}
		statements++
		total += len(batch)
		batch = batch[:0]
		if req.OnProgress != nil {
			req.OnProgress(total)
		}
		return nil
	}

	for rows.Next() {
		batch = append(batch, query.Tuple(rows.Record(), req.Columns))
		if len(batch) == BatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}

	logger.Debug("Imported %d rows into %s with %d INSERT statement(s) in %v",
		total, req.Table, statements, time.Since(start).Round(time.Millisecond))
	return total, nil
}

// RemoveUpload deletes path when it lies inside the upload directory.
// Files elsewhere are never touched; removed reports whether a file was
// deleted.
func (s *Service) RemoveUpload(path string) (removed bool, err error) {
	if s.uploadDir == "" || path == "" {
		return false, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, nil
	}
	rel, err := filepath.Rel(s.uploadDir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &errs.IOError{Op: "remove", Path: abs, Err: err}
	}
	return true, nil
}
