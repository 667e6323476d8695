package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"resume-builder/internal/shared/storage/object"
)

// Store keeps objects on the local filesystem under baseDir.
type Store struct {
	baseDir string
}

// New creates a local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Put writes the upload under a fresh key in the owner's directory.
func (s *Store) Put(ctx context.Context, ownerID, fileName string, r io.Reader) (object.Stored, error) {
	key, err := object.NewKey(ownerID, fileName)
	if err != nil {
		return object.Stored{}, fmt.Errorf("new key: %w", err)
	}
	contentType, body, err := object.Sniff(fileName, r)
	if err != nil {
		return object.Stored{}, err
	}
	size, err := s.PutKey(ctx, key, contentType, body)
	if err != nil {
		return object.Stored{}, err
	}
	return object.Stored{Key: key, Size: size, ContentType: contentType}, nil
}

// PutKey writes r to the file at key. The content type is not recorded.
func (s *Store) PutKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write body: %w", err)
	}
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

func (s *Store) path(key string) (string, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

var _ object.Store = (*Store)(nil)
