// internal/segment/format.go
package segment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

/*
 * Literal formatting for the predicate compiler.
 *
 * Condition values arrive as arbitrary primitives (strings from the editor,
 * numbers from parsed queries or API callers). The compiler renders them as
 * SQL literals: bare numeric text for number-typed fields when the value
 * actually is numeric, single-quoted text otherwise. Embedded quotes are
 * doubled.
 */

// literal renders v for a field of the given semantic type.
func literal(v any, t types.SemanticType) string {
	if t == types.TypeNumber {
		if s, ok := numericText(v); ok {
			return s
		}
	}
	if t == types.TypeBoolean {
		if b, ok := boolText(v); ok {
			return b
		}
	}
	return quote(valueText(v))
}

// numericText returns the canonical numeric rendering of v if it is a number
// or a numeric string. Whitespace-only strings are not valid numbers.
func numericText(v any) (string, bool) {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return "", false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", false
		}
		return s, true
	default:
		return "", false
	}
}

// boolText returns TRUE/FALSE for boolean values and boolean-looking strings.
func boolText(v any) (string, bool) {
	switch b := v.(type) {
	case bool:
		if b {
			return "TRUE", true
		}
		return "FALSE", true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return "TRUE", true
		case "false":
			return "FALSE", true
		}
	}
	return "", false
}

// valueText renders v as plain text for quoting.
func valueText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// quote wraps s in single quotes, doubling embedded quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// likePattern quotes a LIKE pattern built around the raw value.
func likePattern(prefix string, v any, suffix string) string {
	return quote(prefix + valueText(v) + suffix)
}
