package formatters

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Values are text end to end; nil stands for the store's NULL.

var sqlStringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `''`,
)

// QuoteSQLString renders s as a single-quoted SQL string literal.
// Embedded single quotes are doubled (O'Brien -> 'O''Brien') and backslashes,
// which the store treats as escapes inside literals, are doubled too.
func QuoteSQLString(s string) string {
	return "'" + sqlStringEscaper.Replace(s) + "'"
}

// FormatSQLValue formats a nullable text value for an INSERT tuple.
// Destination columns are non-nullable String, so NULL becomes ''.
func FormatSQLValue(val *string) string {
	if val == nil {
		return "''"
	}
	return QuoteSQLString(*val)
}

// FormatSQLTuple builds "(v1, v2, ...)".
func FormatSQLTuple(values []*string) string {
	var b strings.Builder
	b.Grow(len(values) * 8)
	b.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatSQLValue(v))
	}
	b.WriteByte(')')
	return b.String()
}

// FormatCSVValue renders a value for a delimited file; NULL is an empty field.
func FormatCSVValue(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}

// FormatJSONValue keeps NULL as JSON null.
func FormatJSONValue(val *string) any {
	if val == nil {
		return nil
	}
	return *val
}

// FormatYAMLValue keeps NULL as YAML null.
func FormatYAMLValue(val *string) any {
	return FormatJSONValue(val)
}

// FormatXLSXValue renders NULL as an empty cell.
func FormatXLSXValue(val *string) any {
	if val == nil {
		return nil
	}
	return *val
}

// FormatText renders a value produced by a typed driver as text.
// Pointers are dereferenced; nil becomes the empty string.
func FormatText(v any) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case float32:
		return fmt.Sprintf("%.15g", val)
	case float64:
		return fmt.Sprintf("%.15g", val)
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return FormatText(rv.Elem().Interface())
	}

	return fmt.Sprintf("%v", v)
}
