// Package validate normalizes domains and filters scraped email addresses.
// Every function is total: malformed input yields a negative answer, never
// a panic or error.
package validate

import "strings"

const maxDomainLength = 253

// NormalizeDomain reduces a URL, host or bare domain to its lowercase
// registrable host. Scheme, userinfo, port, path, query, fragment, a
// trailing dot and a leading "www." are removed. It reports false when the
// result is not a plausible public domain.
func NormalizeDomain(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", false
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else {
		s = strings.TrimPrefix(s, "//")
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	for strings.HasPrefix(s, "www.") {
		s = s[len("www."):]
	}

	if !validHost(s) {
		return "", false
	}
	return s, true
}

// validHost checks label syntax and requires an alphabetic TLD of at least
// two characters.
func validHost(s string) bool {
	if s == "" || len(s) > maxDomainLength {
		return false
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if !validLabel(l) {
			return false
		}
	}
	return alphaTLD(labels[len(labels)-1], 2, 63)
}

func validLabel(l string) bool {
	if len(l) == 0 || len(l) > 63 {
		return false
	}
	if l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}
	for i := 0; i < len(l); i++ {
		c := l[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}

func alphaTLD(tld string, minLen, maxLen int) bool {
	if len(tld) < minLen || len(tld) > maxLen {
		return false
	}
	for i := 0; i < len(tld); i++ {
		if tld[i] < 'a' || tld[i] > 'z' {
			return false
		}
	}
	return true
}
