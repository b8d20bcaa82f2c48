package sanitize

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._%+-]*@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	// typoLabels invalidate an address when found in the first domain label.
	typoLabels = []string{"gmial", "yahho", "outlok", "hotnail"}

	domainFixes = map[string]string{
		"gmial.com":    "gmail.com",
		"gmal.com":     "gmail.com",
		"gmail.co":     "gmail.com",
		"gmail.comm":   "gmail.com",
		"yahho.com":    "yahoo.com",
		"yaho.com":     "yahoo.com",
		"yahoo.comm":   "yahoo.com",
		"hotmial.com":  "hotmail.com",
		"hotnail.com":  "hotmail.com",
		"hotmail.comm": "hotmail.com",
		"outlok.com":   "outlook.com",
		"outloo.com":   "outlook.com",
		"outlook.comm": "outlook.com",
	}
)

// Email canonicalizes an address: lowercase, Gmail dots dropped, plus
// addressing removed and common domain typos repaired. Invalid addresses
// are returned as given with false.
func Email(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if !IsValidEmail(s) {
		zap.L().Warn("sanitize: invalid email", zap.String("email", raw))
		return raw, false
	}

	s = strings.ToLower(s)
	local, domain, _ := strings.Cut(s, "@")

	if domain == "gmail.com" {
		local = strings.ReplaceAll(local, ".", "")
	}
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	if fixed, ok := domainFixes[domain]; ok {
		domain = fixed
	}
	if strings.HasSuffix(domain, ".comm") {
		domain = strings.TrimSuffix(domain, "m")
	}
	return local + "@" + domain, true
}

// IsValidEmail applies the address pattern plus the double-dot, TLD length
// and typo checks.
func IsValidEmail(s string) bool {
	if !emailPattern.MatchString(s) {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}
	tld := s[strings.LastIndexByte(s, '.')+1:]
	if len(tld) < 2 || len(tld) > 63 {
		return false
	}
	_, domain, _ := strings.Cut(s, "@")
	label, _, _ := strings.Cut(strings.ToLower(domain), ".")
	for _, typo := range typoLabels {
		if strings.Contains(label, typo) {
			return false
		}
	}
	return true
}
