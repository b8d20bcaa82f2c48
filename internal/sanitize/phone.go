// Package sanitize cleans and validates candidate contact fields.
package sanitize

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var phonePattern = regexp.MustCompile(`^\+\d{1,3}-\d{10}$`)

// Phone rewrites an Indian mobile number to "+91-XXXXXXXXXX". The second
// return is false when the number could not be classified, in which case
// the raw input is returned unchanged.
func Phone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	// Spreadsheet cells often carry numbers as floats.
	s = strings.TrimSuffix(s, ".0")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()

	switch {
	case len(d) == 10 && mobileLead(d[0]):
		return "+91-" + d, true
	case len(d) == 12 && strings.HasPrefix(d, "91") && mobileLead(d[2]):
		return "+91-" + d[2:], true
	case len(d) == 11 && d[0] == '0' && mobileLead(d[1]):
		return "+91-" + d[1:], true
	}

	zap.L().Warn("sanitize: unrecognized phone number", zap.String("phone", raw))
	return raw, false
}

func mobileLead(c byte) bool {
	return c >= '6' && c <= '9'
}

// IsValidPhone reports whether s is in "+CC-XXXXXXXXXX" form.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}
