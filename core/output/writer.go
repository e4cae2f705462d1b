package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/internal/logger"
)

const (
	None = "none"
	GZIP = "gzip"
	ZIP  = "zip"
	ZSTD = "zstd"
	LZ4  = "lz4"
)

// OutputConfig describes a destination file.
type OutputConfig struct {
	Path        string
	Compression string
	Format      string
}

func (c OutputConfig) compression() string {
	comp := strings.ToLower(strings.TrimSpace(c.Compression))
	if comp == "" {
		return None
	}
	return comp
}

// FinalPath returns the path actually written, after the compression
// extension is applied.
func (c OutputConfig) FinalPath() string {
	comp := c.compression()
	if comp == ZIP {
		return fixExtension(c.Path, ".zip")
	}
	if s, ok := streamCodecs[comp]; ok && !strings.HasSuffix(strings.ToLower(c.Path), s.ext) {
		return c.Path + s.ext
	}
	return c.Path
}

// Compressions lists the accepted compression names.
func Compressions() []string {
	return []string{None, GZIP, ZIP, ZSTD, LZ4}
}

// CreateWriter creates the destination file, compressed as configured.
// An empty compression means none.
func CreateWriter(cfg OutputConfig) (io.WriteCloser, error) {
	comp := cfg.compression()
	path := cfg.FinalPath()

	switch comp {
	case None:
		logger.Debug("Creating uncompressed output file: %s", path)
		file, err := createFile(path)
		if err != nil {
			return nil, err
		}
		return newBufferedWriteCloser(file, 256*1024), nil
	case ZIP:
		return newZipWriter(path, cfg.Path, cfg.Format)
	}

	codec, ok := streamCodecs[comp]
	if !ok {
		return nil, errs.Formatf("unsupported compression type %q (available: %s)",
			cfg.Compression, strings.Join(Compressions(), ", "))
	}
	return newStreamWriter(path, codec)
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &errs.IOError{Op: "create", Path: dir, Err: err}
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, &errs.IOError{Op: "create", Path: path, Err: err}
	}
	return file, nil
}

// closeBoth closes the compressor then the file, keeping the first error.
func closeBoth(name, path string, start time.Time, inner io.Closer, file *os.File) func() error {
	return func() error {
		logger.Debug("Finalizing %s compression for: %s", name, path)
		err := inner.Close()
		if ferr := file.Close(); ferr != nil && err == nil {
			err = ferr
		}
		if err != nil {
			return &errs.IOError{Op: "close", Path: path, Err: fmt.Errorf("%s: %w", name, err)}
		}
		logger.Debug("%s file closed successfully in %v", name, time.Since(start))
		return nil
	}
}
