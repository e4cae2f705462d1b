// Package ingest moves rows between the store and flat files: table and
// join exports, batched imports, previews and catalog listings.
package ingest

import (
	"path/filepath"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/db"
	"github.com/fbz-tec/chxport/core/query"
	"github.com/fbz-tec/chxport/core/records"
)

// BatchSize is the number of rows sent per INSERT statement.
const BatchSize = 1000

// ProgressFunc receives the number of rows moved so far.
type ProgressFunc func(rows int)

// ExportRequest exports columns of one table to a file.
type ExportRequest struct {
	Connection  config.Connection       `json:"connection"`
	Table       string                  `json:"table"`
	Columns     records.ColumnSelection `json:"columns"`
	File        records.FlatFileConfig  `json:"file"`
	Format      string                  `json:"format,omitempty"`
	Compression string                  `json:"compression,omitempty"`
	NoHeader    bool                    `json:"noHeader,omitempty"`

	OnProgress ProgressFunc `json:"-"`
}

// JoinRequest exports the result of an optional single join to a file.
type JoinRequest struct {
	Connection  config.Connection       `json:"connection"`
	Join        query.JoinConfig        `json:"join"`
	Columns     records.ColumnSelection `json:"columns"`
	File        records.FlatFileConfig  `json:"file"`
	Format      string                  `json:"format,omitempty"`
	Compression string                  `json:"compression,omitempty"`
	NoHeader    bool                    `json:"noHeader,omitempty"`

	OnProgress ProgressFunc `json:"-"`
}

// ImportRequest loads columns of a delimited file into a table, creating
// the table when missing.
type ImportRequest struct {
	Connection config.Connection       `json:"connection"`
	Table      string                  `json:"table"`
	Columns    records.ColumnSelection `json:"columns"`
	File       records.FlatFileConfig  `json:"file"`

	OnProgress ProgressFunc `json:"-"`
}

// Result summarises a finished transfer.
type Result struct {
	Rows    int    `json:"rows"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Service runs transfers against the store.
type Service struct {
	exec      db.Executor
	previewer db.Previewer
	uploadDir string
}

// Option configures a Service.
type Option func(*Service)

// WithUploadDir enables removal of imported files that live under dir.
func WithUploadDir(dir string) Option {
	return func(s *Service) {
		if abs, err := filepath.Abs(dir); err == nil {
			s.uploadDir = abs
		}
	}
}

// NewService wires the executor used for transfers and catalog queries and
// the previewer used for store previews.
func NewService(exec db.Executor, previewer db.Previewer, opts ...Option) *Service {
	s := &Service{exec: exec, previewer: previewer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
