package validate

import (
	"regexp"
	"strings"
)

const (
	minEmailLength       = 5
	maxEmailLength       = 255
	maxLocalPartLength   = 64
	maxEmailDomainLength = 255
)

var (
	// emailPattern is intentionally loose; candidates are filtered by
	// IsPlausibleEmail afterwards.
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,24}`)

	localPartPattern = regexp.MustCompile("^[a-z0-9!#$%&'*+/=?^_`{|}~-]+(\\.[a-z0-9!#$%&'*+/=?^_`{|}~-]+)*$")

	// assetPattern matches file extensions of page assets, e.g. "logo@2x.png".
	assetPattern = regexp.MustCompile(`\.(css|js|jpe?g|png|gif|svg|webp|ico|woff2?|ttf|eot|pdf|mp4|mp3|json|xml|map|zip)([^a-z0-9]|$)`)
)

// selectorMarkers appear when CSS or minified markup is mistaken for an address.
var selectorMarkers = []string{
	"@media", "@import", "@font-face", "@keyframes", "@charset", "@supports", ".ctrl-",
}

var placeholderDomains = map[string]bool{
	"example.com":    true,
	"example.org":    true,
	"example.net":    true,
	"test.com":       true,
	"domain.com":     true,
	"email.com":      true,
	"yourdomain.com": true,
	"sentry.io":      true,
	"localhost":      true,
}

var noReplyMarkers = []string{"noreply", "no-reply", "donotreply", "do-not-reply"}

// IsPlausibleEmail reports whether addr looks like a real, reachable
// contact address rather than a scraping artifact.
func IsPlausibleEmail(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	if len(a) < minEmailLength || len(a) > maxEmailLength {
		return false
	}
	if assetPattern.MatchString(a) {
		return false
	}
	if hasSelectorMarker(a) {
		return false
	}
	if strings.Count(a, "@") != 1 {
		return false
	}

	local, domain, _ := strings.Cut(a, "@")
	if local == "" || len(local) > maxLocalPartLength || !localPartPattern.MatchString(local) {
		return false
	}
	if len(domain) > maxEmailDomainLength || !validEmailDomain(domain) {
		return false
	}
	return !isPlaceholder(local, domain)
}

// hasSelectorMarker matches a marker only when it is not the prefix of a
// longer word, so "sales@mediagroup.com" survives while "x@media.screen"
// does not.
func hasSelectorMarker(a string) bool {
	for _, m := range selectorMarkers {
		rest := a
		for {
			i := strings.Index(rest, m)
			if i < 0 {
				break
			}
			rest = rest[i+len(m):]
			if rest == "" || !isAlnum(rest[0]) || !isAlnum(m[len(m)-1]) {
				return true
			}
		}
	}
	return false
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

func validEmailDomain(domain string) bool {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if !validLabel(l) {
			return false
		}
	}
	return alphaTLD(labels[len(labels)-1], 2, 24)
}

func isPlaceholder(local, domain string) bool {
	for d := range placeholderDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	base, _, _ := strings.Cut(local, "+")
	for _, m := range noReplyMarkers {
		if strings.Contains(base, m) {
			return true
		}
		for _, l := range strings.Split(domain, ".") {
			if l == m {
				return true
			}
		}
	}
	return false
}

// ExtractEmails finds plausible addresses in free text. Results are
// lowercased and deduplicated in first-seen order.
func ExtractEmails(text string) []string {
	return dedupePlausible(emailPattern.FindAllString(text, -1))
}

func dedupePlausible(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		e := strings.Trim(strings.ToLower(strings.TrimSpace(c)), ".")
		if seen[e] || !IsPlausibleEmail(e) {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
