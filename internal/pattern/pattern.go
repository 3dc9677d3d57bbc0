// Package pattern implements the wildcard text matcher used by routing rules.
//
// A pattern takes exactly one of four forms, decided by its leading and
// trailing asterisks: exact ("deploy"), prefix ("deploy*"), suffix
// ("*deploy"), and substring ("*deploy*"). A lone "*" matches anything.
// Asterisks inside the token are literal; this is a 4-case classifier, not a
// glob engine. Patterns are compiled once at rule load time and are immutable,
// so they are safe for unsynchronized concurrent use.
package pattern

import (
	"fmt"
	"strings"

	gwerrors "github.com/droidagent/slack-gateway-go/internal/errors"
)

// Form identifies which of the four matching behaviors a pattern uses.
type Form int

const (
	FormAny Form = iota // "*": matches unconditionally
	FormExact
	FormPrefix
	FormSuffix
	FormContains
)

// String returns a readable form name, used in logs and error messages.
func (f Form) String() string {
	switch f {
	case FormAny:
		return "any"
	case FormExact:
		return "exact"
	case FormPrefix:
		return "prefix"
	case FormSuffix:
		return "suffix"
	case FormContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Pattern is a compiled wildcard matcher. The zero value matches nothing
// useful; always obtain patterns through Compile.
type Pattern struct {
	raw   string
	form  Form
	token string // lowered token, empty for FormAny
}

// Compile parses a pattern string into its matcher form. It fails only when
// the pattern is structurally malformed, i.e. empty after trimming.
func Compile(raw string) (Pattern, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Pattern{}, fmt.Errorf("%w: empty pattern", gwerrors.ErrInvalidPattern)
	}

	if trimmed == "*" {
		return Pattern{raw: raw, form: FormAny}, nil
	}

	leading := strings.HasPrefix(trimmed, "*")
	trailing := strings.HasSuffix(trimmed, "*")

	token := trimmed
	form := FormExact
	switch {
	case leading && trailing:
		form = FormContains
		token = token[1 : len(token)-1]
	case trailing:
		form = FormPrefix
		token = token[:len(token)-1]
	case leading:
		form = FormSuffix
		token = token[1:]
	}

	// "**" strips to an empty token, which contains-matches everything.
	// Treat it like "*" rather than rejecting it.
	if token == "" {
		return Pattern{raw: raw, form: FormAny}, nil
	}

	return Pattern{raw: raw, form: form, token: strings.ToLower(token)}, nil
}

// MustCompile is a test and fixture convenience; it panics on a malformed pattern.
func MustCompile(raw string) Pattern {
	p, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether text satisfies the pattern. Matching is
// case-insensitive and never fails, whatever the input text contains.
func (p Pattern) Match(text string) bool {
	switch p.form {
	case FormAny:
		return true
	case FormExact:
		return strings.ToLower(strings.TrimSpace(text)) == p.token
	case FormPrefix:
		return strings.HasPrefix(strings.ToLower(text), p.token)
	case FormSuffix:
		return strings.HasSuffix(strings.ToLower(text), p.token)
	case FormContains:
		return strings.Contains(strings.ToLower(text), p.token)
	default:
		return false
	}
}

// Form returns the pattern's matching form.
func (p Pattern) Form() Form {
	return p.form
}

// String returns the original pattern text.
func (p Pattern) String() string {
	return p.raw
}
