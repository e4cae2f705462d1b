// Package output creates export destination files, optionally compressed
// with gzip, zip, zstd or lz4.
package output

import (
	"bufio"
	"io"

	"github.com/fbz-tec/chxport/core/errs"
)

// bufferedWriteCloser flushes before closing the file underneath.
// Close is idempotent so callers can defer it and also check it.
type bufferedWriteCloser struct {
	*bufio.Writer
	underlying io.WriteCloser
	closed     bool
}

func (b *bufferedWriteCloser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.Writer.Flush(); err != nil {
		b.underlying.Close()
		return &errs.IOError{Op: "flush", Path: "output", Err: err}
	}
	return b.underlying.Close()
}

func newBufferedWriteCloser(wc io.WriteCloser, size int) io.WriteCloser {
	return &bufferedWriteCloser{
		Writer:     bufio.NewWriterSize(wc, size),
		underlying: wc,
	}
}

type compositeWriteCloser struct {
	io.Writer
	closeFunc func() error
}

func (c *compositeWriteCloser) Close() error {
	if c.closeFunc == nil {
		return nil
	}
	fn := c.closeFunc
	c.closeFunc = nil
	return fn()
}
