package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), " ", "")
	require.Error(t, err)
}

func TestTextFromResponseJoinsParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"education":`), genai.Text(`[]}`)}},
		}},
	}
	out, err := textFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"education":[]}`, out)
}

func TestTextFromResponseErrors(t *testing.T) {
	_, err := textFromResponse(nil)
	assert.Error(t, err)

	_, err = textFromResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.Error(t, err)

	_, err = textFromResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
	}}})
	assert.Error(t, err)
}
