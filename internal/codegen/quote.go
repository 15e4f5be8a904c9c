package codegen

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/pyblocks/pkg/core"
)

// expressionChars mark a literal as an expression rather than a name.
const expressionChars = "+-*/()[]{}"

// Quote applies mode to a literal input value. With core.QuoteString the
// value is wrapped in double quotes unless it is already quoted or looks like
// a variable name.
func Quote(value string, mode core.QuoteMode) string {
	if mode != core.QuoteString {
		return value
	}
	if strings.HasPrefix(value, `"`) || strings.HasPrefix(value, "'") {
		return value
	}
	if IsVariableReference(value) {
		return value
	}
	return `"` + value + `"`
}

// IsVariableReference reports whether value looks like a bare variable name.
// Digit-only values and anything containing quotes, operators or brackets
// are not names.
func IsVariableReference(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, `"`) || strings.HasPrefix(value, "'") {
		return false
	}
	if strings.IndexFunc(value, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return false
	}
	if strings.ContainsAny(value, expressionChars) {
		return false
	}
	alnum := strings.IndexFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) < 0
	return alnum || strings.Contains(value, "_")
}
