package structured

import (
	"context"
	"time"

	"resume-builder/internal/llm"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/telemetry"
)

// Extractor converts free text into a StructuredRecord with the AI
// capability, falling back to ParseFallback on any failure.
type Extractor struct {
	LLM     llm.Client
	Timeout time.Duration
}

// NewExtractor constructs an Extractor. A nil client always uses the fallback.
func NewExtractor(client llm.Client, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTuning().AITimeout
	}
	return &Extractor{LLM: client, Timeout: timeout}
}

// Extract never fails: errors, timeouts and malformed output degrade to
// the rule-based parser.
func (x *Extractor) Extract(ctx context.Context, rawText string) StructuredRecord {
	rec, err := x.extractAI(ctx, rawText)
	if err != nil {
		telemetry.Warn("extraction.degraded", map[string]any{
			"error":      err.Error(),
			"text_bytes": len(rawText),
		})
		metrics.IncExtractionDegraded()
		return ParseFallback(rawText)
	}
	return rec
}

func (x *Extractor) extractAI(ctx context.Context, rawText string) (StructuredRecord, error) {
	if x == nil || x.LLM == nil {
		return StructuredRecord{}, llm.ErrNotImplemented
	}
	out, err := completeWithTimeout(ctx, x.LLM, x.Timeout, buildExtractionPrompt(rawText))
	if err != nil {
		return StructuredRecord{}, err
	}
	return DecodePayload(out)
}

// completeWithTimeout bounds one AI call. Expiry surfaces as
// context.DeadlineExceeded even when the client ignores ctx.
func completeWithTimeout(ctx context.Context, client llm.Client, timeout time.Duration, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := client.Complete(ctx, prompt)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
