package output

import (
	"compress/gzip"
	"io"
	"time"

	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type streamCodec struct {
	ext  string
	wrap func(io.Writer) (io.WriteCloser, error)
}

var streamCodecs = map[string]streamCodec{
	GZIP: {ext: ".gz", wrap: func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	}},
	ZSTD: {ext: ".zst", wrap: func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	}},
	LZ4: {ext: ".lz4", wrap: func(w io.Writer) (io.WriteCloser, error) {
		return lz4.NewWriter(w), nil
	}},
}

func newStreamWriter(path string, codec streamCodec) (io.WriteCloser, error) {
	start := time.Now()
	name := codec.ext[1:]
	logger.Debug("Creating %s-compressed output file: %s", name, path)

	file, err := createFile(path)
	if err != nil {
		return nil, err
	}
	cw, err := codec.wrap(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &compositeWriteCloser{
		Writer:    cw,
		closeFunc: closeBoth(name, path, start, cw, file),
	}, nil
}
