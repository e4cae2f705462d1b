package records

import (
	"github.com/fbz-tec/chxport/core/errs"
)

// FlatFileConfig locates a delimited file and its single-character delimiter.
type FlatFileConfig struct {
	FilePath  string `json:"filePath"`
	Delimiter string `json:"delimiter"`
}

// Comma returns the delimiter as a rune.
func (f FlatFileConfig) Comma() (rune, error) {
	return ParseDelimiter(f.Delimiter)
}

// ParseDelimiter accepts exactly one character; the two-character escape \t
// is accepted for tab. Characters that cannot separate delimited fields
// (quote, CR, LF) are rejected.
func ParseDelimiter(delim string) (rune, error) {
	if delim == "" {
		return 0, errs.Formatf("delimiter cannot be empty")
	}

	if delim == `\t` {
		return '\t', nil
	}

	runes := []rune(delim)

	if len(runes) != 1 {
		return 0, errs.Formatf("delimiter must be a single character (use \\t for tab), got %q", delim)
	}

	switch r := runes[0]; r {
	case '"', '\r', '\n', 0, '\uFFFD':
		return 0, errs.Formatf("delimiter %q is not allowed", string(r))
	default:
		return r, nil
	}
}
