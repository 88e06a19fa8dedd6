package textnormalize

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// Question normalizes free-text programming questions before embedding or
// lexical matching:
// - Unicode NFKC
// - transliteration to ASCII (best-effort)
// - lowercase
// - punctuation collapse to spaces
// - whitespace collapse
//
// It is intentionally conservative: question titles come from Stack
// Overflow-style sources in many scripts and should match across them.
func Question(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = norm.NFKC.String(s)
	s = unidecode.Unidecode(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return ""
	}
	return strings.Join(strings.Fields(out), " ")
}

// Identifier normalizes a fully qualified API identifier for comparison.
// Unlike Question it preserves dots (the qualification structure is the
// identity) and drops everything that is not part of a dotted name, e.g.
// call parentheses and generic parameters copied from documentation.
func Identifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = norm.NFKC.String(s)
	s = unidecode.Unidecode(s)

	if i := strings.IndexAny(s, "(<"); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '.' || r == '_' || r == '$' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}
