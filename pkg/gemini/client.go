// Package gemini wraps the Google Gemini SDK for short text generation.
package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const providerName = "gemini"

// Client generates text with a Gemini model.
type Client interface {
	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)
	Close() error
}

// TextRequest is a single-turn generation request.
type TextRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature *float32
}

// TextResponse carries the generated text and token counts.
type TextResponse struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini client. Extra client options are appended
// after the API key.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	if apiKey == "" {
		return nil, resilience.NotConfigured(providerName)
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	model := c.client.GenerativeModel(req.Model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, eris.Wrap(classify(err), "gemini: generate content")
	}
	return fromResponse(resp)
}

func (c *sdkClient) Close() error {
	return c.client.Close()
}

func fromResponse(resp *genai.GenerateContentResponse) (*TextResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, eris.New("gemini: no candidates in response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return nil, eris.Errorf("gemini: empty candidate (finish reason %s)", cand.FinishReason)
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return nil, eris.New("gemini: no text parts in response")
	}

	out := &TextResponse{Text: b.String()}
	if resp.UsageMetadata != nil {
		out.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}

// classify maps gRPC status codes onto provider errors.
func classify(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return resilience.NewProviderError(providerName, resilience.KindUnauthorized, err)
	case codes.PermissionDenied:
		return resilience.NewProviderError(providerName, resilience.KindForbidden, err)
	case codes.ResourceExhausted:
		return resilience.RateLimited(providerName, 0, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return resilience.NewTransientError(err, 0)
	default:
		return resilience.NewProviderError(providerName, resilience.KindUnknown, err)
	}
}
