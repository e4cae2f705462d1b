// Package input opens delimited files for reading, transparently
// decompressing .gz, .zst and .lz4 files and stripping a leading byte order
// mark (UTF-16 files are transcoded to UTF-8).
package input

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Open opens path for reading. Compression is chosen from the file extension.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: path, Err: err}
	}

	var r io.Reader
	closeFunc := file.Close

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gz":
		logger.Debug("Opening gzip-compressed input file: %s", path)
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, &errs.FormatError{Msg: "invalid gzip stream", Err: err}
		}
		r = gz
		closeFunc = func() error {
			gerr := gz.Close()
			if ferr := file.Close(); ferr != nil {
				return ferr
			}
			return gerr
		}

	case ".zst":
		logger.Debug("Opening Zstandard-compressed input file: %s", path)
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, &errs.FormatError{Msg: "invalid zstd stream", Err: err}
		}
		r = dec
		closeFunc = func() error {
			dec.Close()
			return file.Close()
		}

	case ".lz4":
		logger.Debug("Opening lz4-compressed input file: %s", path)
		r = lz4.NewReader(file)

	default:
		logger.Debug("Opening input file: %s", path)
		r = file
	}

	return &readCloser{
		Reader:    transform.NewReader(r, unicode.BOMOverride(transform.Nop)),
		closeFunc: closeFunc,
	}, nil
}

type readCloser struct {
	io.Reader
	closeFunc func() error
}

func (rc *readCloser) Close() error {
	if err := rc.closeFunc(); err != nil {
		return fmt.Errorf("error closing input: %w", err)
	}
	return nil
}
