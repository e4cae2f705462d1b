package output

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/internal/logger"
)

func newZipWriter(path, requested, format string) (io.WriteCloser, error) {
	start := time.Now()
	logger.Debug("Creating zip-compressed output file: %s", path)

	file, err := createFile(path)
	if err != nil {
		return nil, err
	}

	zw := zip.NewWriter(file)
	entryName := determineZipEntryName(requested, format)
	logger.Debug("Creating zip entry: %s", entryName)

	entry, err := zw.Create(entryName)
	if err != nil {
		zw.Close()
		file.Close()
		return nil, &errs.IOError{Op: "create zip entry", Path: path, Err: err}
	}
	return &compositeWriteCloser{
		Writer:    entry,
		closeFunc: closeBoth("zip", path, start, zw, file),
	}, nil
}

// determineZipEntryName names the single archive entry after the requested
// file, adding the format extension when missing.
func determineZipEntryName(outputPath, format string) string {
	name := strings.TrimSuffix(filepath.Base(outputPath), ".zip")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "export"
	}
	if format != "" && !strings.HasSuffix(strings.ToLower(name), "."+format) {
		name = fmt.Sprintf("%s.%s", name, format)
	}
	return name
}

func fixExtension(path, extension string) string {
	ext := filepath.Ext(path)
	if strings.ToLower(ext) != extension {
		path = path[:len(path)-len(ext)] + extension
	}
	return path
}
