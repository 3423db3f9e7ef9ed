package provider

import (
	"context"

	"github.com/sells-group/outreach-cli/pkg/gmail"
)

// GmailSender adapts the Gmail API to Sender.
type GmailSender struct {
	client gmail.Client
	from   string
}

// NewGmailSender wraps client. from is the From header, empty to let Gmail
// use the authorized mailbox.
func NewGmailSender(client gmail.Client, from string) *GmailSender {
	return &GmailSender{client: client, from: from}
}

func (g *GmailSender) Name() string { return Gmail }

func (g *GmailSender) Send(ctx context.Context, msg Message) (*Delivery, error) {
	sent, err := g.client.Send(ctx, gmail.Message{
		From:     g.from,
		To:       msg.To,
		Subject:  msg.Subject,
		Body:     msg.Body,
		ThreadID: msg.ThreadID,
	})
	if err != nil {
		return nil, err
	}
	return &Delivery{MessageID: sent.ID, ThreadID: sent.ThreadID}, nil
}
