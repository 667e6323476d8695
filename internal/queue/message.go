package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Client hands documents to the ingestion worker.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// MessageVersion is the current payload version.
const MessageVersion = 1

// Message asks a worker to ingest an uploaded document.
type Message struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage builds a versioned ingestion message.
func NewMessage(documentID, userID, requestID string, now time.Time) Message {
	return Message{
		DocumentID: documentID,
		UserID:     userID,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
