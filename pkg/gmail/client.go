// Package gmail sends plain-text outreach mail through the Gmail API using
// an OAuth refresh token.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const providerName = "gmail"

// Client sends messages from the authorized mailbox.
type Client interface {
	Send(ctx context.Context, msg Message) (*SentMessage, error)
}

// Message is an outgoing plain-text message. ThreadID is set for replies
// within an existing thread; Gmail also requires a matching subject.
type Message struct {
	From     string
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// SentMessage identifies the delivered message.
type SentMessage struct {
	ID       string
	ThreadID string
}

// Credentials are the OAuth client and refresh token for the sending
// mailbox.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Configured reports whether all credential fields are set.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

type apiClient struct {
	svc *gm.Service
	now func() time.Time
}

// NewClient builds a Gmail client that refreshes access tokens from creds.
// Extra client options are appended after the token source.
func NewClient(ctx context.Context, creds Credentials, opts ...option.ClientOption) (Client, error) {
	if !creds.Configured() {
		return nil, resilience.NotConfigured(providerName)
	}
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gm.GmailSendScope},
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	return newClient(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
}

func newClient(ctx context.Context, opts ...option.ClientOption) (*apiClient, error) {
	svc, err := gm.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: create service")
	}
	return &apiClient{svc: svc, now: time.Now}, nil
}

func (c *apiClient) Send(ctx context.Context, msg Message) (*SentMessage, error) {
	if msg.To == "" {
		return nil, eris.New("gmail: recipient is required")
	}
	raw := buildRFC2822(msg, c.now())
	out := &gm.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
		ThreadId: msg.ThreadID,
	}

	sent, err := c.svc.Users.Messages.Send("me", out).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(classify(err), "gmail: send message")
	}
	return &SentMessage{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// buildRFC2822 renders a plain-text message. Non-ASCII subjects are
// Q-encoded.
func buildRFC2822(msg Message, now time.Time) string {
	var b strings.Builder
	if msg.From != "" {
		fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	}
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.String()
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return resilience.FromHTTPStatus(providerName, gerr.Code, gerr.Header, gerr.Message)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		// invalid_grant and friends come back as 400 from the token endpoint.
		if rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized {
			return resilience.NewProviderError(providerName, resilience.KindUnauthorized, err)
		}
		return resilience.FromHTTPStatus(providerName, rerr.Response.StatusCode, rerr.Response.Header, string(rerr.Body))
	}
	return err
}
