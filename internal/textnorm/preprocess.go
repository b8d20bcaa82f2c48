// Package textnorm reduces free text to the comparable form used by every
// matching stage.
package textnorm

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Preprocess returns v case-folded, NFKC-normalized, with every rune that is
// not a letter, digit or underscore turned into a space and whitespace runs
// collapsed. Nil and non-text values yield "".
func Preprocess(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case fmt.Stringer:
		s = t.String()
	default:
		return ""
	}
	return preprocess(s)
}

// String is Preprocess for values already known to be strings.
func String(s string) string {
	return preprocess(s)
}

func preprocess(s string) string {
	if s == "" {
		return ""
	}
	// Caser values carry state, so one is built per call.
	s = cases.Fold().String(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		if unicode.IsMark(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits preprocessed text into tokens of two or more runes.
func Tokens(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
