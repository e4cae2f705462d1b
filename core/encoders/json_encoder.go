// Package encoders renders records with their column order preserved.
package encoders

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fbz-tec/chxport/core/formatters"
	"github.com/fbz-tec/chxport/core/records"
)

// OrderedJsonEncoder writes one record as an indented JSON object.
type OrderedJsonEncoder struct {
	indent string
}

// NewOrderedJsonEncoder returns an encoder nesting objects under indent.
func NewOrderedJsonEncoder(indent string) OrderedJsonEncoder {
	return OrderedJsonEncoder{indent: indent}
}

// EncodeRow encodes rec with keys in column order. HTML characters are not
// escaped.
func (o OrderedJsonEncoder) EncodeRow(rec records.Record) ([]byte, error) {
	if rec.Len() == 0 {
		return []byte("{}"), nil
	}

	var row bytes.Buffer
	row.Grow(rec.Len() * 32)
	row.WriteString("{\n")

	i := 0
	for k, v := range rec.All() {
		if i > 0 {
			row.WriteString(",\n")
		}
		row.WriteString(o.indent)
		row.WriteString(o.indent)

		key, err := marshalWithoutHTMLEscape(k)
		if err != nil {
			return nil, fmt.Errorf("error marshaling key %q: %w", k, err)
		}
		row.Write(key)
		row.WriteString(": ")

		val, err := marshalWithoutHTMLEscape(formatters.FormatJSONValue(v))
		if err != nil {
			return nil, fmt.Errorf("error marshaling value for key %q: %w", k, err)
		}
		row.Write(val)
		i++
	}

	row.WriteString("\n")
	row.WriteString(o.indent)
	row.WriteString("}")
	return row.Bytes(), nil
}

func marshalWithoutHTMLEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
