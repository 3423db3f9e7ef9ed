package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, resilience.KindNotConfigured, resilience.KindOf(err))
}

func TestFromResponse_JoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("Subject: Quick question\n"),
				genai.Blob{MIMEType: "image/png"},
				genai.Text("Hi there"),
			}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 40, CandidatesTokenCount: 12},
	}

	out, err := fromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Subject: Quick question\nHi there", out.Text)
	assert.Equal(t, int32(40), out.InputTokens)
	assert.Equal(t, int32(12), out.OutputTokens)
}

func TestFromResponse_Empty(t *testing.T) {
	_, err := fromResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = fromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	})
	assert.Error(t, err)

	_, err = fromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{}}}}},
	})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code codes.Code
		kind resilience.ErrorKind
	}{
		{codes.Unauthenticated, resilience.KindUnauthorized},
		{codes.PermissionDenied, resilience.KindForbidden},
		{codes.ResourceExhausted, resilience.KindRateLimited},
		{codes.InvalidArgument, resilience.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := classify(status.Error(tt.code, "boom"))
			assert.Equal(t, tt.kind, resilience.KindOf(err))
		})
	}
}

func TestClassify_Transient(t *testing.T) {
	err := classify(status.Error(codes.Unavailable, "backend down"))
	assert.True(t, resilience.IsTransient(err))
}

func TestClassify_PassesThroughPlainErrors(t *testing.T) {
	err := errors.New("plain")
	assert.Same(t, err, classify(err))
}
