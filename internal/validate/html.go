package validate

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractEmailsFromHTML collects plausible addresses from a page: mailto
// links first, then visible text. Script and style content is ignored.
func ExtractEmailsFromHTML(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ExtractEmails(html)
	}
	return ExtractEmailsFromDocument(doc)
}

// ExtractEmailsFromDocument is ExtractEmailsFromHTML for an already parsed
// document. The document is modified: non-visible elements are removed.
func ExtractEmailsFromDocument(doc *goquery.Document) []string {
	var candidates []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		candidates = append(candidates, mailtoAddresses(href)...)
	})

	doc.Find("script, style, noscript, template").Remove()
	candidates = append(candidates, emailPattern.FindAllString(doc.Text(), -1)...)

	return dedupePlausible(candidates)
}

func mailtoAddresses(href string) []string {
	href = strings.TrimSpace(href)
	if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
		return nil
	}
	addrs, _, _ := strings.Cut(href[len("mailto:"):], "?")
	if decoded, err := url.PathUnescape(addrs); err == nil {
		addrs = decoded
	}
	var out []string
	for _, a := range strings.Split(addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
