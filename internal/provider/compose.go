package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/gemini"
)

// ComposeSettings personalize drafted messages.
type ComposeSettings struct {
	SenderName    string
	SenderCompany string
	Offer         string
	MaxTokens     int
}

const systemPrompt = `You write short, specific cold outreach emails to small business owners.
Rules:
- Reference something concrete from the page context.
- At most 120 words in the body. No placeholders, no links, no signature block beyond the sender name.
- Plain text only.
Reply in exactly this format:
Subject: <subject line>

<body>`

// BuildPrompt returns the system and user prompts for req.
func BuildPrompt(req DraftRequest, s ComposeSettings) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Website: %s\n", req.Domain)
	if req.PageTitle != "" {
		fmt.Fprintf(&b, "Page title: %s\n", req.PageTitle)
	}
	if req.PageURL != "" {
		fmt.Fprintf(&b, "Page URL: %s\n", req.PageURL)
	}
	if req.Snippet != "" {
		fmt.Fprintf(&b, "Search snippet: %s\n", req.Snippet)
	}
	if s.SenderName != "" {
		fmt.Fprintf(&b, "Sender: %s", s.SenderName)
		if s.SenderCompany != "" {
			fmt.Fprintf(&b, " (%s)", s.SenderCompany)
		}
		b.WriteString("\n")
	}
	if s.Offer != "" {
		fmt.Fprintf(&b, "What we offer: %s\n", s.Offer)
	}

	if req.FollowUp > 0 {
		fmt.Fprintf(&b, "\nWrite follow-up #%d to the message below. Keep it under 60 words and do not repeat it.\n", req.FollowUp)
		fmt.Fprintf(&b, "Previous message:\n%s\n", req.PreviousBody)
	} else {
		b.WriteString("\nWrite the first outreach email.\n")
	}
	return systemPrompt, b.String()
}

// ParseDraft splits model output into subject and body. A missing subject
// line is an error.
func ParseDraft(text string) (*Draft, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	first, rest, _ := strings.Cut(text, "\n")

	subject, ok := cutPrefixFold(strings.TrimSpace(first), "subject:")
	if !ok {
		return nil, eris.New("provider: draft has no subject line")
	}
	subject = strings.TrimSpace(subject)
	body := strings.TrimSpace(rest)
	if subject == "" || body == "" {
		return nil, eris.New("provider: draft subject or body is empty")
	}
	return &Draft{Subject: subject, Body: body}, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// AnthropicComposer drafts messages with Claude.
type AnthropicComposer struct {
	client   anthropic.Client
	model    string
	settings ComposeSettings
}

// NewAnthropicComposer wraps client.
func NewAnthropicComposer(client anthropic.Client, model string, s ComposeSettings) *AnthropicComposer {
	return &AnthropicComposer{client: client, model: model, settings: s}
}

func (c *AnthropicComposer) Name() string { return Anthropic }

func (c *AnthropicComposer) Compose(ctx context.Context, req DraftRequest) (*Draft, error) {
	system, user := BuildPrompt(req, c.settings)
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   int64(maxTokens(c.settings)),
		System:      system,
		CacheSystem: true,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.Log(c.model, "drafting")
	if resp.Truncated() {
		return nil, eris.Errorf("provider: anthropic draft truncated at %d tokens", maxTokens(c.settings))
	}
	return ParseDraft(resp.Text)
}

// GeminiComposer drafts messages with Gemini.
type GeminiComposer struct {
	client   gemini.Client
	model    string
	settings ComposeSettings
}

// NewGeminiComposer wraps client.
func NewGeminiComposer(client gemini.Client, model string, s ComposeSettings) *GeminiComposer {
	return &GeminiComposer{client: client, model: model, settings: s}
}

func (c *GeminiComposer) Name() string { return Gemini }

func (c *GeminiComposer) Compose(ctx context.Context, req DraftRequest) (*Draft, error) {
	system, user := BuildPrompt(req, c.settings)
	temp := float32(0.7)
	resp, err := c.client.GenerateText(ctx, gemini.TextRequest{
		Model:       c.model,
		System:      system,
		Prompt:      user,
		MaxTokens:   int32(maxTokens(c.settings)),
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Debug("provider: gemini draft",
		zap.String("model", c.model),
		zap.Int32("input_tokens", resp.InputTokens),
		zap.Int32("output_tokens", resp.OutputTokens),
	)
	return ParseDraft(resp.Text)
}

func maxTokens(s ComposeSettings) int {
	if s.MaxTokens > 0 {
		return s.MaxTokens
	}
	return 600
}
