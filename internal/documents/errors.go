package documents

import "errors"

var (
	// ErrInvalidInput marks caller mistakes.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a document does not exist for the user.
	ErrNotFound = errors.New("document not found")
)
