// Package validation guards the identifiers and SQL fragments that are
// interpolated into store statements.
package validation

import (
	"fmt"
	"regexp"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/query"
	"github.com/fbz-tec/chxport/core/records"
)

// identifierPattern accepts a plain name or a single qualified db.name pair.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateIdentifier checks a table or column name.
func ValidateIdentifier(kind, name string) error {
	if name == "" {
		return errs.Formatf("%s name cannot be empty", kind)
	}
	if !identifierPattern.MatchString(name) {
		return errs.Formatf("invalid %s name %q: only letters, digits, underscore and one qualifying dot are allowed", kind, name)
	}
	return nil
}

// ValidateColumns checks a column selection and every name in it.
func ValidateColumns(cols records.ColumnSelection) error {
	if err := cols.Validate(); err != nil {
		return err
	}
	for _, col := range cols {
		if err := ValidateIdentifier("column", col); err != nil {
			return err
		}
	}
	return nil
}

// ValidateJoinConfig checks the tables of cfg and, when a join table is set,
// its condition.
func ValidateJoinConfig(cfg query.JoinConfig) error {
	if err := ValidateIdentifier("source table", cfg.SourceTable); err != nil {
		return err
	}
	if cfg.JoinTable == "" {
		return nil
	}
	if err := ValidateIdentifier("join table", cfg.JoinTable); err != nil {
		return err
	}
	if err := ValidateJoinCondition(cfg.JoinCondition); err != nil {
		return &errs.FormatError{Msg: fmt.Sprintf("invalid join condition %q", cfg.JoinCondition), Err: err}
	}
	return nil
}
