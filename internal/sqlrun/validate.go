package sqlrun

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrEmptyQuery     = errors.New("query cannot be empty")
	ErrMultiStatement = errors.New("multiple SQL statements are not allowed")

	// errTrailingStatement is what the engine reports for a second statement
	// behind a single top-level semicolon.
	errTrailingStatement = errors.New("The supplied SQL string contains more than one statement")
)

// ValidateQuery rejects blank input and input holding more than one
// top-level statement. A single trailing semicolon is allowed.
//
// Semicolons inside '...' or "..." literals are not counted. A quote
// preceded by a backslash does not open or close a literal, and a quote of
// the other kind inside a literal is plain text.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	if countTopLevelSemicolons(trimmed) > 1 {
		return ErrMultiStatement
	}
	return nil
}

func countTopLevelSemicolons(text string) int {
	return len(topLevelSemicolons(text))
}

// topLevelSemicolons returns the byte offsets of semicolons outside quoted
// literals.
func topLevelSemicolons(text string) []int {
	var (
		inSingleQuote bool
		inDoubleQuote bool
		offsets       []int
		prev          rune
	)

	for idx, char := range text {
		escaped := prev == '\\'
		switch {
		case char == '\'' && !escaped && !inDoubleQuote:
			inSingleQuote = !inSingleQuote
		case char == '"' && !escaped && !inSingleQuote:
			inDoubleQuote = !inDoubleQuote
		case char == ';' && !inSingleQuote && !inDoubleQuote:
			offsets = append(offsets, idx)
		}
		prev = char
	}

	return offsets
}

// splitTrailing cuts query after its first top-level semicolon. rest is
// what follows once whitespace and SQL comments are skipped, so it is empty
// for a single statement.
func splitTrailing(query string) (statement, rest string) {
	offsets := topLevelSemicolons(query)
	if len(offsets) == 0 {
		return query, ""
	}
	cut := offsets[0] + 1
	return query[:cut], skipSpaceAndComments(query[cut:])
}

func skipSpaceAndComments(text string) string {
	for {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
		switch {
		case strings.HasPrefix(text, "--"):
			end := strings.IndexByte(text, '\n')
			if end < 0 {
				return ""
			}
			text = text[end+1:]
		case strings.HasPrefix(text, "/*"):
			end := strings.Index(text[2:], "*/")
			if end < 0 {
				return ""
			}
			text = text[end+4:]
		default:
			return text
		}
	}
}

// isReadQuery reports whether the statement takes the row-returning path.
func isReadQuery(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}
