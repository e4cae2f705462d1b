package exporters

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fbz-tec/chxport/core/errs"
)

// Factory returns a new exporter; exporters are not reused across transfers.
type Factory func() Exporter

// registry is filled by init functions only and read-only afterwards.
var registry = map[string]Factory{}

func normalize(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return FormatCSV
	}
	return format
}

func Register(format string, factory Factory) error {
	format = normalize(format)
	if _, exists := registry[format]; exists {
		return fmt.Errorf("exporter: format %q already registered", format)
	}
	registry[format] = factory
	return nil
}

// Get returns a fresh exporter for format; an empty format means csv.
func Get(format string) (Exporter, error) {
	factory, ok := registry[normalize(format)]
	if !ok {
		return nil, errs.Formatf("unsupported format: %q (available: %s)",
			format, strings.Join(List(), ", "))
	}
	return factory(), nil
}

// List returns the registered formats, sorted.
func List() []string {
	return slices.Sorted(maps.Keys(registry))
}

func MustRegister(format string, factory Factory) {
	if err := Register(format, factory); err != nil {
		panic(err)
	}
}
