// Package records holds the exchange format between the store and flat files:
// an ordered column-name to text-value mapping, plus the codecs that translate
// the store's TabSeparated output and delimited files to and from it.
package records

import (
	"bytes"
	"encoding/json"
	"iter"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/fbz-tec/chxport/core/errs"
)

// ColumnSelection is the ordered list of columns a transfer reads or writes.
// Its order drives both the SELECT projection and the file header.
type ColumnSelection []string

// ParseColumns splits a comma separated list, dropping blanks.
func ParseColumns(s string) ColumnSelection {
	var cols ColumnSelection
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// Validate rejects empty selections, blank names and duplicates.
func (c ColumnSelection) Validate() error {
	if len(c) == 0 {
		return errs.Formatf("column selection cannot be empty")
	}
	seen := make(map[string]struct{}, len(c))
	for _, col := range c {
		if strings.TrimSpace(col) == "" {
			return errs.Formatf("column names cannot be blank")
		}
		if _, dup := seen[col]; dup {
			return errs.Formatf("column %q selected more than once", col)
		}
		seen[col] = struct{}{}
	}
	return nil
}

// String joins the columns for a projection list.
func (c ColumnSelection) String() string {
	return strings.Join(c, ", ")
}

// Record is one row: column name to nullable text value, in column order.
type Record struct {
	values *orderedmap.OrderedMap[string, *string]
}

// NewRecord creates an empty record.
func NewRecord() Record {
	return Record{values: orderedmap.NewOrderedMap[string, *string]()}
}

// RecordOf builds a record from parallel column/value slices.
func RecordOf(cols ColumnSelection, values ...string) Record {
	r := NewRecord()
	for i, col := range cols {
		if i < len(values) {
			v := values[i]
			r.Set(col, &v)
		} else {
			r.Set(col, nil)
		}
	}
	return r
}

// Set stores value under column, keeping first-insertion order.
func (r Record) Set(column string, value *string) {
	r.values.Set(column, value)
}

// Get returns the value for column; ok is false when the column is absent.
func (r Record) Get(column string) (value *string, ok bool) {
	return r.values.Get(column)
}

// Len returns the number of columns.
func (r Record) Len() int {
	return r.values.Len()
}

// All iterates columns in order.
func (r Record) All() iter.Seq2[string, *string] {
	return r.values.AllFromFront()
}

// Values returns the values for cols, nil for NULL or absent columns.
func (r Record) Values(cols ColumnSelection) []*string {
	out := make([]*string, len(cols))
	for i, col := range cols {
		out[i], _ = r.values.Get(col)
	}
	return out
}

// MarshalJSON encodes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for k, v := range r.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if v == nil {
			buf.WriteString("null")
		} else {
			val, err := json.Marshal(*v)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		i++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Rows is a forward-only stream of records.
//
//	for rows.Next() {
//	    rec := rows.Record()
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows interface {
	Columns() ColumnSelection
	Next() bool
	Record() Record
	Err() error
	Close() error
}
