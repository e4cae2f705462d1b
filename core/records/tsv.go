package records

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fbz-tec/chxport/core/errs"
)

// TSVRows decodes the store's TabSeparated output. Fields are matched to the
// requested columns by position; the store returns them in projection order.
type TSVRows struct {
	cols   ColumnSelection
	reader *bufio.Reader
	closer io.Closer
	cur    Record
	err    error
	line   int
	done   bool
}

// NewTSVRows wraps r. If r is an io.Closer, Close closes it.
func NewTSVRows(r io.Reader, cols ColumnSelection) *TSVRows {
	t := &TSVRows{
		cols:   cols,
		reader: bufio.NewReaderSize(r, 256*1024),
	}
	if c, ok := r.(io.Closer); ok {
		t.closer = c
	}
	return t
}

func (t *TSVRows) Columns() ColumnSelection { return t.cols }
func (t *TSVRows) Record() Record           { return t.cur }
func (t *TSVRows) Err() error               { return t.err }

// Next advances to the next non-blank line.
func (t *TSVRows) Next() bool {
	for !t.done {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.err = &errs.IOError{Op: "read", Path: "store response", Err: err}
				t.done = true
				return false
			}
			t.done = true
			if line == "" {
				return false
			}
		}
		t.line++

		line = strings.TrimSuffix(line, "\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != len(t.cols) {
			t.err = &errs.FormatError{
				Line: t.line,
				Msg:  fmt.Sprintf("expected %d tab-separated fields, got %d", len(t.cols), len(fields)),
			}
			t.done = true
			return false
		}

		rec := NewRecord()
		for i, col := range t.cols {
			rec.Set(col, unescapeTSV(fields[i]))
		}
		t.cur = rec
		return true
	}
	return false
}

// Close releases the underlying reader.
func (t *TSVRows) Close() error {
	t.done = true
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// DecodeTSV reads all of body into records.
func DecodeTSV(body string, cols ColumnSelection) ([]Record, error) {
	rows := NewTSVRows(strings.NewReader(body), cols)
	defer rows.Close()

	var out []Record
	for rows.Next() {
		out = append(out, rows.Record())
	}
	return out, rows.Err()
}

// unescapeTSV reverses the store's TabSeparated escaping. \N is NULL.
func unescapeTSV(field string) *string {
	if field == `\N` {
		return nil
	}
	if !strings.Contains(field, `\`) {
		return &field
	}

	var b strings.Builder
	b.Grow(len(field))
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c != '\\' || i == len(field)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch field[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0':
			b.WriteByte(0)
		case '\\', '\'':
			b.WriteByte(field[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(field[i])
		}
	}
	s := b.String()
	return &s
}
