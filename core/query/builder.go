// Package query builds the SQL text sent to the store.
//
// Builders are pure: identical inputs yield byte-identical statements.
// Identifiers are interpolated as given; callers validate them first
// (see package validation).
package query

import (
	"fmt"
	"strings"

	"github.com/fbz-tec/chxport/core/formatters"
	"github.com/fbz-tec/chxport/core/records"
)

// PreviewLimit caps the rows returned by preview queries.
const PreviewLimit = 100

// JoinConfig describes a table export with an optional single JOIN.
// An empty JoinTable degenerates to a plain SELECT from SourceTable.
type JoinConfig struct {
	SourceTable   string `json:"sourceTable"`
	JoinTable     string `json:"joinTable,omitempty"`
	JoinCondition string `json:"joinCondition,omitempty"`
}

// BuildSelect returns "SELECT <cols> FROM <table>".
func BuildSelect(table string, cols records.ColumnSelection) string {
	return fmt.Sprintf("SELECT %s FROM %s", cols, table)
}

// BuildJoin returns the SELECT for cfg, with "JOIN <t> ON <cond>" appended
// when a join table is set. The condition is copied verbatim.
func BuildJoin(cfg JoinConfig, cols records.ColumnSelection) string {
	sql := BuildSelect(cfg.SourceTable, cols)
	if cfg.JoinTable != "" {
		sql += fmt.Sprintf(" JOIN %s ON %s", cfg.JoinTable, cfg.JoinCondition)
	}
	return sql
}

// WithTabSeparated requests TabSeparated output for sql.
func WithTabSeparated(sql string) string {
	return sql + " FORMAT TabSeparated"
}

// WithLimit appends a LIMIT clause.
func WithLimit(sql string, n int) string {
	return fmt.Sprintf("%s LIMIT %d", sql, n)
}

// BuildPreview returns the first PreviewLimit rows of table.
func BuildPreview(table string, cols records.ColumnSelection) string {
	return WithLimit(BuildSelect(table, cols), PreviewLimit)
}

// BuildCreateTable declares every column as String.
func BuildCreateTable(table string, cols records.ColumnSelection) string {
	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = col + " String"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()",
		table, strings.Join(defs, ", "))
}

// BuildInsert returns one multi-row INSERT for the given tuple literals.
func BuildInsert(table string, cols records.ColumnSelection, tuples []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, cols)
	for i, t := range tuples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t)
	}
	return b.String()
}

// Tuple renders rec's values for cols as an INSERT tuple literal.
func Tuple(rec records.Record, cols records.ColumnSelection) string {
	return formatters.FormatSQLTuple(rec.Values(cols))
}

// ShowTables lists the tables of database.
func ShowTables(database string) string {
	return "SHOW TABLES FROM " + database
}

// Describe lists the columns of table as name/type rows.
func Describe(table string) string {
	return "DESCRIBE TABLE " + table
}
