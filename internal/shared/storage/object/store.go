package object

import (
	"context"
	"io"
)

// Stored describes an object written by Put.
type Stored struct {
	Key         string
	Size        int64
	ContentType string
}

// Store saves and retrieves uploaded resume files and their derived text.
type Store interface {
	// Put writes an upload under a fresh key in the owner's namespace.
	Put(ctx context.Context, ownerID, fileName string, r io.Reader) (Stored, error)
	// PutKey writes r at an exact key, replacing any existing object.
	PutKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ExtractedKey is where the plain text extracted from key is cached.
func ExtractedKey(key string) string {
	return key + ".extracted.txt"
}
