package db

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/formatters"
	"github.com/fbz-tec/chxport/internal/logger"
)

// NativeStore reads typed rows through clickhouse-go over the same HTTP
// port used by HTTPStore. It backs the store preview.
type NativeStore struct {
	dialTimeout time.Duration
}

// NewNativeStore creates a preview reader.
func NewNativeStore(dialTimeout time.Duration) *NativeStore {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &NativeStore{dialTimeout: dialTimeout}
}

func (s *NativeStore) open(conn config.Connection) *sql.DB {
	opts := &clickhouse.Options{
		Addr:     []string{conn.Addr()},
		Protocol: clickhouse.HTTP,
		Auth: clickhouse.Auth{
			Database: conn.Database,
			Username: conn.User,
			Password: conn.Token,
		},
		DialTimeout: s.dialTimeout,
	}
	if conn.Secure {
		opts.TLS = &tls.Config{}
	}
	return clickhouse.OpenDB(opts)
}

// Preview executes query and returns every row rendered as strings.
// The connection is opened for this call only.
func (s *NativeStore) Preview(ctx context.Context, conn config.Connection, query string) ([][]string, error) {
	db := s.open(conn)
	defer db.Close()

	logger.Debug("Connection timeout: %v", s.dialTimeout)
	logger.Debug("Attempting to connect to store host: %s", conn.Addr())

	if err := db.PingContext(ctx); err != nil {
		return nil, &errs.TransportError{Endpoint: conn.BaseURL(), Err: err}
	}

	logger.Debug("Executing preview query: %s", query)

	startTime := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyPreviewError(conn, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classifyPreviewError(conn, err)
	}

	var result [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, classifyPreviewError(conn, fmt.Errorf("reading row %d: %w", len(result)+1, err))
		}

		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatters.FormatText(v)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyPreviewError(conn, err)
	}

	logger.Debug("Retrieved %d records in %v", len(result), time.Since(startTime))
	return result, nil
}

var httpStatusPattern = regexp.MustCompile(`\[HTTP (\d{3})\]`)

// classifyPreviewError maps client failures onto the store error taxonomy:
// network and deadline failures become *errs.TransportError, anything the
// server answered becomes *errs.QueryFailedError.
func classifyPreviewError(conn config.Connection, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &errs.TransportError{Endpoint: conn.BaseURL(), Err: err}
	}

	status := http.StatusInternalServerError
	var ex *clickhouse.Exception
	if m := httpStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ = strconv.Atoi(m[1])
	} else if errors.As(err, &ex) {
		status = http.StatusBadRequest
	}
	return &errs.QueryFailedError{StatusCode: status, Body: err.Error()}
}
