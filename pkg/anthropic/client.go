// Package anthropic wraps the Anthropic Messages API for drafting outreach
// copy.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const providerName = "anthropic"

// StopMaxTokens is the stop reason of a reply cut off by MaxTokens.
const StopMaxTokens = "max_tokens"

// Client defines the Anthropic API operations used for drafting.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single-turn drafting request.
type MessageRequest struct {
	Model     string
	MaxTokens int64
	// System is sent as one text block. CacheSystem marks it for prompt
	// caching; the drafting system prompt is identical across a job.
	System      string
	CacheSystem bool
	Messages    []Message
	Temperature *float64
}

// Message is one conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is the flattened reply.
type MessageResponse struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      Usage
}

// Truncated reports whether the reply hit MaxTokens.
func (r *MessageResponse) Truncated() bool {
	return r.StopReason == StopMaxTokens
}

// Usage counts the tokens of one call.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Log records token usage for purpose.
func (u Usage) Log(model, purpose string) {
	zap.L().Info("anthropic: token usage",
		zap.String("model", model),
		zap.String("purpose", purpose),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheWriteTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
	)
}

// Option configures the client.
type Option func(*sdkClient)

// WithRetry overrides the transient-failure retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(c *sdkClient) { c.retry = rc }
}

// WithRequestOptions appends SDK request options, e.g. a base URL in tests.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *sdkClient) { c.reqOpts = append(c.reqOpts, opts...) }
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client  sdk.Client
	retry   resilience.RetryConfig
	reqOpts []option.RequestOption
}

// NewClient creates a Client. SDK-level retries are disabled; transient
// failures are retried by the resilience policy so they are logged per
// provider.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{retry: resilience.DefaultRetryConfig()}
	for _, o := range opts {
		o(c)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, c.reqOpts...)
	c.client = sdk.NewClient(reqOpts...)
	return c
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		block := sdk.TextBlockParam{Text: req.System}
		if req.CacheSystem {
			block.CacheControl = sdk.NewCacheControlEphemeralParam()
		}
		params.System = []sdk.TextBlockParam{block}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	return resilience.Call(ctx, c.retry, providerName, "create_message", func(ctx context.Context) (*MessageResponse, error) {
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return nil, eris.Wrap(classify(err), "anthropic: create message")
		}
		return fromSDKMessage(msg), nil
	})
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out[i] = sdk.NewAssistantMessage(block)
		} else {
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		},
	}
}

// classify maps SDK API errors onto provider errors. 529 overloaded and
// 5xx become transient so the retry policy handles them.
func classify(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.StatusCode == 529 {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	return resilience.FromHTTPStatus(providerName, apiErr.StatusCode, header, apiErr.Error())
}
