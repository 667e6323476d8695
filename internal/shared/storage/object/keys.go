package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ErrInvalidFileName is returned for empty names or names with traversal.
var ErrInvalidFileName = errors.New("invalid file name")

// OwnerPrefix returns a path-safe namespace for an owner id.
func OwnerPrefix(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:])
}

// SanitizeFileName strips path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.TrimSpace(name)
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" {
		return "", ErrInvalidFileName
	}
	return s, nil
}

// NewKey builds "<owner prefix>/<random>_<file name>" for an upload.
func NewKey(ownerID, fileName string) (string, error) {
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(OwnerPrefix(ownerID), strings.ReplaceAll(uuid.NewString(), "-", "")+"_"+name), nil
}

// CleanKey rejects absolute keys and keys escaping the store root.
func CleanKey(key string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return clean, nil
}

// Sniff detects the content type of r from its first 512 bytes and returns a
// reader that replays them. DOCX files sniff as zip archives, so the file
// extension refines that case.
func Sniff(fileName string, r io.Reader) (string, io.Reader, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	contentType := http.DetectContentType(head[:n])
	if strings.EqualFold(filepath.Ext(fileName), ".docx") && contentType == "application/zip" {
		contentType = contentTypeDOCX
	}
	buffered := append([]byte(nil), head[:n]...)
	return contentType, io.MultiReader(bytes.NewReader(buffered), r), nil
}
