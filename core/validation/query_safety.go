package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Statements a join condition must never smuggle in.
var forbiddenCommands = []string{
	"DELETE",
	"DROP",
	"TRUNCATE",
	"INSERT",
	"UPDATE",
	"ALTER",
	"CREATE",
	"GRANT",
	"REVOKE",
	"RENAME",
	"ATTACH",
	"DETACH",
	"OPTIMIZE",
	"EXCHANGE",
}

var forbiddenPatterns = compileForbidden(forbiddenCommands)

func compileForbidden(cmds []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(cmds))
	for _, cmd := range cmds {
		out[cmd] = regexp.MustCompile(`\b` + regexp.QuoteMeta(cmd) + `\b`)
	}
	return out
}

var whitespace = regexp.MustCompile(`\s+`)

// ValidateJoinCondition checks the raw ON fragment of a join export.
// The fragment is still interpolated verbatim; this only rejects comments,
// statement separators, unbalanced quotes and data-modifying keywords.
func ValidateJoinCondition(cond string) error {
	if strings.TrimSpace(cond) == "" {
		return fmt.Errorf("join condition cannot be empty")
	}

	if stripped := removeSQLComments(cond); stripped != cond {
		return fmt.Errorf("comments are not allowed in a join condition")
	}

	if unterminatedLiteral(cond) {
		return fmt.Errorf("unterminated string literal in join condition")
	}

	if len(splitStatements(cond)) != 1 || strings.Contains(removeStringLiterals(cond), ";") {
		return fmt.Errorf("statement separators are not allowed in a join condition")
	}

	return scanForForbiddenCommands(normalizeSQL(cond))
}

// removeSQLComments drops -- and /* */ comments outside string literals.
func removeSQLComments(query string) string {
	var out strings.Builder
	var quote byte
	lineComment, blockComment := false, false

	for i := 0; i < len(query); i++ {
		c := query[i]
		next := byte(0)
		if i+1 < len(query) {
			next = query[i+1]
		}

		switch {
		case lineComment:
			if c == '\n' {
				lineComment = false
				out.WriteByte(c)
			}
		case blockComment:
			if c == '*' && next == '/' {
				blockComment = false
				i++
			}
		case quote != 0:
			out.WriteByte(c)
			if c == quote {
				if next == quote {
					out.WriteByte(next)
					i++
				} else {
					quote = 0
				}
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(c)
		case c == '-' && next == '-':
			lineComment = true
			i++
		case c == '/' && next == '*':
			blockComment = true
			i++
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// splitStatements splits on semicolons outside string literals.
func splitStatements(query string) []string {
	var statements []string
	var current strings.Builder
	var quote byte

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == quote {
				if i+1 < len(query) && query[i+1] == quote {
					current.WriteByte(query[i+1])
					i++
				} else {
					quote = 0
				}
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			current.WriteByte(c)
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return statements
}

func normalizeSQL(query string) string {
	return whitespace.ReplaceAllString(strings.ToUpper(strings.TrimSpace(query)), " ")
}

// scanForForbiddenCommands matches forbidden keywords as whole words outside
// string literals and quoted identifiers.
func scanForForbiddenCommands(normalized string) error {
	bare := removeStringLiterals(normalized)
	for _, cmd := range forbiddenCommands {
		if forbiddenPatterns[cmd].MatchString(bare) {
			return fmt.Errorf("forbidden SQL command detected: %s", cmd)
		}
	}
	return nil
}

// removeStringLiterals blanks out quoted content, keeping word boundaries.
func removeStringLiterals(query string) string {
	var out strings.Builder
	var quote byte

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				if i+1 < len(query) && query[i+1] == quote {
					i++
					out.WriteString("  ")
					continue
				}
				quote = 0
			}
			out.WriteByte(' ')
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

func unterminatedLiteral(query string) bool {
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				if i+1 < len(query) && query[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		}
	}
	return quote != 0
}
