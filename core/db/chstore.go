package db

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/internal/logger"
)

const (
	headerUser     = "X-ClickHouse-User"
	headerKey      = "X-ClickHouse-Key"
	headerDatabase = "X-ClickHouse-Database"
	headerFormat   = "X-ClickHouse-Format"

	defaultFormat = "TabSeparated"

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 64 * 1024
)

// HTTPOptions tunes the shared HTTP client.
type HTTPOptions struct {
	Timeout  time.Duration
	MaxConns int
}

// HTTPStore talks to the store over its HTTP text interface.
// One HTTPStore is shared by every transfer; connections are pooled per host.
type HTTPStore struct {
	client *http.Client
}

// NewHTTPStore creates a store client with a pooled transport.
func NewHTTPStore(opts HTTPOptions) *HTTPStore {
	if opts.MaxConns <= 0 {
		opts.MaxConns = config.DefaultCHMaxConns
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     opts.MaxConns,
		MaxIdleConnsPerHost: opts.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTPStore{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}
}

// Query executes sql and returns the response body.
// A non-200 answer yields *errs.QueryFailedError, a network failure *errs.TransportError.
func (s *HTTPStore) Query(ctx context.Context, conn config.Connection, sql string) (string, error) {
	body, err := s.Stream(ctx, conn, sql)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", &errs.TransportError{Endpoint: conn.BaseURL(), Err: fmt.Errorf("reading response: %w", err)}
	}

	logger.Debug("Response received (%d bytes)", len(data))
	return string(data), nil
}

// Stream executes sql and hands back the open response body.
func (s *HTTPStore) Stream(ctx context.Context, conn config.Connection, sql string) (io.ReadCloser, error) {
	endpoint := conn.BaseURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/", strings.NewReader(sql))
	if err != nil {
		return nil, &errs.TransportError{Endpoint: endpoint, Err: err}
	}

	req.Header.Set(headerUser, conn.User)
	req.Header.Set(headerKey, conn.Token)
	req.Header.Set(headerDatabase, conn.Database)
	req.Header.Set(headerFormat, defaultFormat)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	logger.Debug("Executing query on %s (user=%s, database=%s)", endpoint, conn.User, conn.Database)
	logger.Debug("Query: %s", abbreviate(sql, 512))

	startTime := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &errs.TransportError{Endpoint: endpoint, Err: err}
	}

	logger.Debug("Response status code: %d (%v)", resp.StatusCode, time.Since(startTime))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &errs.QueryFailedError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return resp.Body, nil
}

// Close releases idle pooled connections.
func (s *HTTPStore) Close() {
	s.client.CloseIdleConnections()
}

// abbreviate keeps debug logs readable when large INSERT batches are sent.
func abbreviate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s... (%d more bytes)", s[:max], len(s)-max)
}
