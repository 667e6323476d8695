package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"resume-builder/internal/documents"
	"resume-builder/internal/extract"
	"resume-builder/internal/queue"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/structured"
)

// Processor handles one decoded document message.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body []byte) MessageMeta {
	if len(body) == 0 {
		return MessageMeta{}
	}
	sum := sha256.Sum256(body)
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingField indicates a message without a document or user id.
type ErrMissingField struct {
	Meta      MessageMeta
	Field     string
	RequestID string
}

func (e ErrMissingField) Error() string { return "missing " + e.Field }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	DocumentID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process document"
	}
	return "process document: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body []byte) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(string(body)) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage(body)
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.DocumentID) == "" {
		return msg, meta, ErrMissingField{Meta: meta, Field: "documentId", RequestID: msg.RequestID}
	}
	if strings.TrimSpace(msg.UserID) == "" {
		return msg, meta, ErrMissingField{Meta: meta, Field: "userId", RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses, validates and processes a message payload.
func HandleMessage(ctx context.Context, proc Processor, body []byte) error {
	if proc == nil {
		return errors.New("document processor not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}

	ctx = telemetry.WithRequestID(ctx, msg.RequestID)
	if err := proc.Process(ctx, msg); err != nil {
		return ErrProcess{DocumentID: msg.DocumentID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// Permanent reports whether retrying err cannot succeed.
func Permanent(err error) bool {
	var (
		empty       ErrEmptyBody
		decode      ErrDecode
		missing     ErrMissingField
		unsupported *extract.UnsupportedTypeError
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &missing):
		return true
	case errors.As(err, &unsupported):
		return true
	case errors.Is(err, extract.ErrNoText),
		errors.Is(err, documents.ErrNotFound),
		errors.Is(err, structured.ErrMissingInput),
		errors.Is(err, structured.ErrInvalidInput):
		return true
	}
	return false
}

// ShouldRequeue reports whether a failed delivery goes back on the queue.
// A message is retried at most once.
func ShouldRequeue(err error, redelivered bool) bool {
	if err == nil || redelivered {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return !Permanent(err)
}

// Acknowledger settles a delivery. amqp.Delivery satisfies it.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Outcome is how a delivery was settled.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRequeued  Outcome = "requeued"
	OutcomeDropped   Outcome = "dropped"
)

// Settle processes body and acks or nacks the delivery accordingly.
func Settle(ctx context.Context, proc Processor, body []byte, redelivered bool, ack Acknowledger) Outcome {
	err := HandleMessage(ctx, proc, body)
	if err == nil {
		if ackErr := ack.Ack(false); ackErr != nil {
			telemetry.Error("worker.ack_failed", map[string]any{"error": ackErr.Error()})
		}
		return OutcomeCompleted
	}

	metrics.IncWorkerFailed()
	fields := failureFields(body, err)
	fields["redelivered"] = redelivered

	requeue := ShouldRequeue(err, redelivered)
	if nackErr := ack.Nack(false, requeue); nackErr != nil {
		fields["nack_error"] = nackErr.Error()
	}
	if requeue {
		telemetry.Warn("worker.document.requeued", fields)
		return OutcomeRequeued
	}
	telemetry.Error("worker.document.dropped", fields)
	return OutcomeDropped
}

func failureFields(body []byte, err error) map[string]any {
	meta := ComputeMeta(body)
	fields := map[string]any{
		"error":    err.Error(),
		"body_len": meta.BodyLen,
	}
	if meta.BodySHA != "" {
		fields["body_sha256"] = meta.BodySHA
	}
	var procErr ErrProcess
	if errors.As(err, &procErr) {
		fields["document_id"] = procErr.DocumentID
		if procErr.RequestID != "" {
			fields["request_id"] = procErr.RequestID
		}
	}
	var missing ErrMissingField
	if errors.As(err, &missing) && missing.RequestID != "" {
		fields["request_id"] = missing.RequestID
	}
	return fields
}
