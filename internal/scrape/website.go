package scrape

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/validate"
)

// EmailFinder scrapes a prospect's own website for a contact address. It
// implements provider.EmailFinder under the "website" name.
type EmailFinder struct {
	fetcher      *Fetcher
	contactPaths []string
	schemes      []string
}

// NewEmailFinder creates an EmailFinder that checks the home page and then
// each of contactPaths.
func NewEmailFinder(fetcher *Fetcher, contactPaths []string) *EmailFinder {
	return &EmailFinder{fetcher: fetcher, contactPaths: contactPaths, schemes: []string{"https", "http"}}
}

func (e *EmailFinder) Name() string { return provider.Website }

// FindEmail returns the best address found on domain's pages, preferring
// addresses on the domain itself. A home page that cannot be fetched over
// any scheme is an error; contact page failures are ignored.
func (e *EmailFinder) FindEmail(ctx context.Context, domain string) (string, error) {
	log := zap.L().With(zap.String("component", "scrape"), zap.String("domain", domain))

	home, base, err := e.fetchHome(ctx, domain)
	if err != nil {
		return "", err
	}

	found := validate.ExtractEmailsFromDocument(home.Doc)
	if best := pickEmail(found, domain); best != "" && onDomain(best, domain) {
		return best, nil
	}

	for _, p := range e.contactPaths {
		page, err := e.fetcher.Fetch(ctx, resolve(base, p))
		if err != nil {
			log.Debug("scrape: contact page failed", zap.String("path", p), zap.Error(err))
			continue
		}
		found = append(found, validate.ExtractEmailsFromDocument(page.Doc)...)
		if best := pickEmail(found, domain); best != "" && onDomain(best, domain) {
			return best, nil
		}
	}
	return pickEmail(found, domain), nil
}

func (e *EmailFinder) fetchHome(ctx context.Context, domain string) (*Page, *url.URL, error) {
	var lastErr error
	for _, scheme := range e.schemes {
		page, err := e.fetcher.Fetch(ctx, scheme+"://"+domain+"/")
		if err != nil {
			lastErr = err
			continue
		}
		base, err := url.Parse(page.URL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "scrape: parse final url")
		}
		return page, base, nil
	}
	return nil, nil, lastErr
}

// pickEmail returns the first address on domain, else the first address.
func pickEmail(emails []string, domain string) string {
	for _, e := range emails {
		if onDomain(e, domain) {
			return e
		}
	}
	if len(emails) > 0 {
		return emails[0]
	}
	return ""
}

func onDomain(email, domain string) bool {
	_, host, ok := strings.Cut(email, "@")
	return ok && (host == domain || strings.HasSuffix(host, "."+domain))
}

func resolve(base *url.URL, path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return base.String()
	}
	return base.ResolveReference(ref).String()
}
