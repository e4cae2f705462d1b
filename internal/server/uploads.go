package server

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/google/uuid"
)

var compressedExts = map[string]bool{".gz": true, ".zst": true, ".lz4": true}

// UploadStore saves uploaded files under generated names in one directory.
type UploadStore struct {
	dir string
}

// NewUploadStore creates dir when missing.
func NewUploadStore(dir string) (*UploadStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &errs.IOError{Op: "resolve", Path: dir, Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &errs.IOError{Op: "mkdir", Path: abs, Err: err}
	}
	return &UploadStore{dir: abs}, nil
}

// Dir returns the absolute upload directory.
func (u *UploadStore) Dir() string { return u.dir }

// Save copies r to <uuid><ext>, keeping the client's extension (and an
// inner extension for compressed files such as .csv.gz).
func (u *UploadStore) Save(name string, r io.Reader) (string, error) {
	dest := filepath.Join(u.dir, uuid.NewString()+uploadExt(name))

	rel, err := filepath.Rel(u.dir, dest)
	if err != nil || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", errs.Formatf("cannot store file outside the upload directory")
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", &errs.IOError{Op: "create", Path: dest, Err: err}
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", &errs.IOError{Op: "write", Path: dest, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", &errs.IOError{Op: "close", Path: dest, Err: err}
	}

	logger.Debug("Stored upload %q as %s", name, dest)
	return dest, nil
}

// Discard removes a stored upload, used when it fails validation.
func (u *UploadStore) Discard(path string) {
	if filepath.Dir(path) != u.dir {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Could not remove rejected upload %s: %v", path, err)
	}
}

func uploadExt(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if compressedExts[ext] {
		inner := strings.ToLower(filepath.Ext(strings.TrimSuffix(base, filepath.Ext(base))))
		ext = inner + ext
	}
	if strings.ContainsAny(ext, " /\\") || len(ext) > 16 {
		return ""
	}
	return ext
}
