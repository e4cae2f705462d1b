// Package exporters writes record streams to files in the supported output
// formats. Each format registers itself with the registry on init.
package exporters

import (
	"github.com/fbz-tec/chxport/core/records"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// progressEvery is how many rows pass between progress callbacks.
const progressEvery = 1000

// ExportOptions holds export configuration.
type ExportOptions struct {
	Format      string
	Delimiter   rune // csv only
	Compression string
	OutputPath  string
	NoHeader    bool

	// OnProgress, when set, receives the running row count every
	// progressEvery rows and once more with the final count.
	OnProgress func(rows int)
}

// Exporter drains rows into options.OutputPath and returns the row count.
type Exporter interface {
	Export(rows records.Rows, options ExportOptions) (int, error)
}

type progress struct {
	fn    func(int)
	count int
}

func newProgress(fn func(int)) *progress {
	return &progress{fn: fn}
}

func (p *progress) add() {
	p.count++
	if p.fn != nil && p.count%progressEvery == 0 {
		p.fn(p.count)
	}
}

func (p *progress) done() int {
	if p.fn != nil {
		p.fn(p.count)
	}
	return p.count
}
