package openai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"resume-builder/internal/llm"
	"resume-builder/internal/shared/telemetry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	systemPrompt   = "You convert resume text into structured data. Respond with JSON only. No markdown. Never omit keys."
)

// Client implements llm.Client on the Chat Completions endpoint in JSON mode.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	// fixedTemp sends temperature=0. It is switched off for model families
	// that reject it.
	fixedTemp bool
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client. OPENAI_TIMEOUT_SECONDS bounds each request and
// LLM_NO_TEMP0_MODELS lists models that must not receive a temperature.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	c := &Client{
		apiKey:    apiKey,
		model:     model,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: requestTimeout()},
		fixedTemp: acceptsTemperature(model, os.Getenv("LLM_NO_TEMP0_MODELS")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func requestTimeout() time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS"))); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 2 * time.Minute
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai http status %d: %s (%s)", e.StatusCode, e.Message, e.Type)
	}
	return fmt.Sprintf("openai http status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) temperatureRejected() bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "temperature") && strings.Contains(msg, "unsupported")
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model          string    `json:"model"`
	Messages       []message `json:"messages"`
	Temperature    *float32  `json:"temperature,omitempty"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type response struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends prompt and returns the message content. A model that
// rejects temperature=0 is asked once more without it.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	content, err := c.call(ctx, prompt, c.fixedTemp)
	var apiErr *APIError
	if c.fixedTemp && errors.As(err, &apiErr) && apiErr.temperatureRejected() {
		telemetry.Warn("llm.openai.temperature_rejected", map[string]any{"model": c.model})
		content, err = c.call(ctx, prompt, false)
	}
	return content, err
}

func (c *Client) call(ctx context.Context, prompt string, withTemp bool) (string, error) {
	req := request{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	req.ResponseFormat.Type = "json_object"
	if withTemp {
		zero := float32(0)
		req.Temperature = &zero
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai read body: %w", err)
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil || resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if parsed.Error != nil {
			apiErr.Message, apiErr.Type = parsed.Error.Message, parsed.Error.Type
		}
		return "", apiErr
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai response missing choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("openai response empty content")
	}

	fields := map[string]any{
		"model":       c.model,
		"prompt_hash": promptHash(prompt),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
	}
	telemetry.Info("llm.openai.completed", fields)
	return content, nil
}

// acceptsTemperature is false for gpt-5 models and for models named in the
// comma separated denylist.
func acceptsTemperature(model, denylist string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if strings.HasPrefix(m, "gpt-5") {
		return false
	}
	for _, d := range strings.Split(denylist, ",") {
		if strings.ToLower(strings.TrimSpace(d)) == m {
			return false
		}
	}
	return true
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}

var _ llm.Client = (*Client)(nil)
