package structured

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller mistakes; handlers map it to 4xx.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingInput is returned when raw content or user id is absent.
	ErrMissingInput = fmt.Errorf("%w: content and user id are required", ErrInvalidInput)
	// ErrNotFound is returned when a record does not exist for the user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateContent is raised by stores when an active record with the
	// same (user, content hash) already exists.
	ErrDuplicateContent = errors.New("duplicate content for user")
)

// PersistenceError wraps a store failure that aborts an ingestion.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("structured: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
