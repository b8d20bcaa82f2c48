package sanitize

import (
	"strings"
	"time"
)

// IsValidPIN reports whether s is a six digit postal code.
func IsValidPIN(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsValidDate reports whether s is a real calendar date written DD/MM/YYYY
// with a four digit year.
func IsValidDate(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 10 || s[2] != '/' || s[5] != '/' {
		return false
	}
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return false
	}
	return t.Year() >= 1000
}
