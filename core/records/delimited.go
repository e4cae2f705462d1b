package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/formatters"
	"github.com/fbz-tec/chxport/core/input"
)

// FileRows reads a delimited file whose first row names the columns.
// Requested columns are looked up by header name, and every value is trimmed.
// Rows may be shorter or longer than the header as long as every requested
// column is present.
type FileRows struct {
	cols   ColumnSelection
	header []string
	index  []int
	reader *csv.Reader
	closer io.Closer
	cur    Record
	err    error
	done   bool
}

// NewFileRows reads the header from r and resolves cols against it.
// An empty cols selects every header column in file order.
func NewFileRows(r io.Reader, comma rune, cols ColumnSelection) (*FileRows, error) {
	reader := newCSVReader(r, comma)
	reader.FieldsPerRecord = -1

	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	if len(cols) == 0 {
		cols = append(ColumnSelection(nil), header...)
	}

	index := make([]int, len(cols))
	for i, col := range cols {
		index[i] = -1
		for j, name := range header {
			if name == col {
				index[i] = j
				break
			}
		}
		if index[i] < 0 {
			return nil, &errs.ColumnNotFoundError{Column: col, Available: header}
		}
	}

	f := &FileRows{
		cols:   cols,
		header: header,
		index:  index,
		reader: reader,
	}
	if c, ok := r.(io.Closer); ok {
		f.closer = c
	}
	return f, nil
}

// OpenFile opens cfg.FilePath (decompressing by extension) and returns its rows.
func OpenFile(cfg FlatFileConfig, cols ColumnSelection) (*FileRows, error) {
	comma, err := cfg.Comma()
	if err != nil {
		return nil, err
	}

	rc, err := input.Open(cfg.FilePath)
	if err != nil {
		return nil, err
	}

	rows, err := NewFileRows(rc, comma, cols)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return rows, nil
}

func (f *FileRows) Columns() ColumnSelection { return f.cols }
func (f *FileRows) Header() []string         { return f.header }
func (f *FileRows) Record() Record           { return f.cur }
func (f *FileRows) Err() error               { return f.err }

// Next reads the next data row.
func (f *FileRows) Next() bool {
	if f.done {
		return false
	}

	fields, err := f.reader.Read()
	if err != nil {
		f.done = true
		if !errors.Is(err, io.EOF) {
			f.err = wrapCSVError(err)
		}
		return false
	}

	rec := NewRecord()
	for i, col := range f.cols {
		if f.index[i] >= len(fields) {
			line, _ := f.reader.FieldPos(0)
			f.done = true
			f.err = &errs.FormatError{
				Line: line,
				Msg:  fmt.Sprintf("row has %d field(s), column %q is field %d", len(fields), col, f.index[i]+1),
			}
			return false
		}
		v := strings.TrimSpace(fields[f.index[i]])
		rec.Set(col, &v)
	}
	f.cur = rec
	return true
}

// Close releases the underlying file.
func (f *FileRows) Close() error {
	f.done = true
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// ReadHeader returns the header row of cfg's file.
func ReadHeader(cfg FlatFileConfig) ([]string, error) {
	rows, err := OpenFile(cfg, nil)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Header(), nil
}

// ValidateFile parses the whole file and returns the number of lines read.
// Ragged rows are accepted; quoting errors are not.
func ValidateFile(cfg FlatFileConfig) (int, error) {
	comma, err := cfg.Comma()
	if err != nil {
		return 0, err
	}

	rc, err := input.Open(cfg.FilePath)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	reader := newCSVReader(rc, comma)
	reader.FieldsPerRecord = -1

	count := 0
	for {
		_, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, wrapCSVError(err)
		}
		count++
	}
}

func newCSVReader(r io.Reader, comma rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.ReuseRecord = true
	return reader
}

func readHeader(reader *csv.Reader) ([]string, error) {
	fields, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.Formatf("file is empty: missing header row")
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}

	header := make([]string, len(fields))
	for i, name := range fields {
		header[i] = strings.TrimSpace(name)
	}
	return header, nil
}

func wrapCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &errs.FormatError{Line: pe.Line, Err: pe.Err}
	}
	return &errs.IOError{Op: "read", Path: "delimited file", Err: err}
}

// DelimitedWriter writes records as delimited text with standard quoting:
// fields holding the delimiter, a quote or a line break are quoted and
// embedded quotes doubled.
type DelimitedWriter struct {
	w    *csv.Writer
	cols ColumnSelection
	buf  []string
}

// NewDelimitedWriter writes fields in cols order separated by comma.
func NewDelimitedWriter(w io.Writer, comma rune, cols ColumnSelection) *DelimitedWriter {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	return &DelimitedWriter{w: cw, cols: cols, buf: make([]string, len(cols))}
}

// WriteHeader writes the column names.
func (d *DelimitedWriter) WriteHeader() error {
	if err := d.w.Write(d.cols); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}
	return nil
}

// Write writes one record; NULL and absent columns become empty fields.
func (d *DelimitedWriter) Write(rec Record) error {
	for i, col := range d.cols {
		v, _ := rec.Get(col)
		d.buf[i] = formatters.FormatCSVValue(v)
	}
	return d.w.Write(d.buf)
}

// Flush writes buffered data and reports any write error.
func (d *DelimitedWriter) Flush() error {
	d.w.Flush()
	return d.w.Error()
}
