package db

import (
	"context"
	"io"

	"github.com/fbz-tec/chxport/core/config"
)

// Executor sends one SQL statement to the store per call.
// Implementations must be safe for concurrent use.
type Executor interface {
	// Query returns the full response body.
	Query(ctx context.Context, conn config.Connection, sql string) (string, error)
	// Stream returns the response body for incremental reading.
	// The caller must close it.
	Stream(ctx context.Context, conn config.Connection, sql string) (io.ReadCloser, error)
}

// Previewer runs a small SELECT through a typed client and renders every
// value as text, in column order.
type Previewer interface {
	Preview(ctx context.Context, conn config.Connection, sql string) ([][]string, error)
}
