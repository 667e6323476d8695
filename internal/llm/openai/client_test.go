package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/internal/llm"
)

const temperatureRejection = `{"error":{"message":"Unsupported value: 'temperature' does not support 0 with this model.","type":"invalid_request_error"}}`

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *recorder) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.bodies...)
}

// newTestClient serves reply(call) with status for every request.
func newTestClient(t *testing.T, model string, reply func(call int) (int, string)) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		rec.mu.Lock()
		rec.bodies = append(rec.bodies, payload)
		call := len(rec.bodies)
		rec.mu.Unlock()

		status, body := reply(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", model, WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	return client, rec
}

func TestAcceptsTemperature(t *testing.T) {
	tests := []struct {
		model, denylist string
		want            bool
	}{
		{"gpt-4o", "", true},
		{"gpt-5", "", false},
		{" GPT-5-mini ", "", false},
		{"gpt-4.1-nano", "gpt-4.1-nano, other", false},
		{"gpt-4.1", "gpt-4.1-nano", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, acceptsTemperature(tt.model, tt.denylist))
		})
	}
}

func TestCompleteReturnsContent(t *testing.T) {
	client, rec := newTestClient(t, "gpt-4o-mini", func(int) (int, string) {
		return http.StatusOK, `{"choices":[{"message":{"content":" {\"education\":[]} "}}],"usage":{"prompt_tokens":3}}`
	})

	out, err := client.Complete(context.Background(), "extract this")
	require.NoError(t, err)
	assert.Equal(t, `{"education":[]}`, out)

	bodies := rec.all()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "temperature")
	assert.Equal(t, map[string]any{"type": "json_object"}, bodies[0]["response_format"])
}

func TestCompleteRetriesWithoutTemperature(t *testing.T) {
	client, rec := newTestClient(t, "gpt-4o-mini", func(call int) (int, string) {
		if call == 1 {
			return http.StatusBadRequest, temperatureRejection
		}
		return http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`
	})

	_, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	bodies := rec.all()
	require.Len(t, bodies, 2)
	assert.NotContains(t, bodies[1], "temperature")
}

func TestCompleteRetriesTemperatureOnlyOnce(t *testing.T) {
	client, rec := newTestClient(t, "gpt-4o-mini", func(int) (int, string) {
		return http.StatusBadRequest, temperatureRejection
	})

	_, err := client.Complete(context.Background(), "p")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Len(t, rec.all(), 2)
}

func TestCompleteServerErrorIsRetryable(t *testing.T) {
	client, _ := newTestClient(t, "gpt-5", func(int) (int, string) {
		return http.StatusBadGateway, "upstream down"
	})

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, llm.ShouldRetry(err))
}

func TestCompleteEmptyChoices(t *testing.T) {
	client, _ := newTestClient(t, "gpt-5", func(int) (int, string) {
		return http.StatusOK, `{"choices":[]}`
	})

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	_, err := NewClient("", "gpt-4o")
	assert.Error(t, err)
	_, err = NewClient("k", " ")
	assert.Error(t, err)
}
