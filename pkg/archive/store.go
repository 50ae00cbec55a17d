// Package archive copies windows of stored readings to a versioned file store
// as CSV.
package archive

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by GetContent when nothing is stored at the path
	ErrNotFound = errors.New("archive path not found")

	// ErrConflict is returned by PutContent when the token does not match the
	// content currently stored, i.e. someone else wrote in between.
	ErrConflict = errors.New("archive content changed since it was read")
)

// Content is a stored file and the token identifying that version of it
type Content struct {
	Data  []byte
	Token string
}

// Store is a versioned file store with optimistic concurrency.
type Store interface {
	// GetContent returns the content at path or ErrNotFound
	GetContent(ctx context.Context, path string) (Content, error)

	// PutContent creates (token == "") or replaces (token of the version being
	// replaced) the content at path.
	PutContent(ctx context.Context, path string, data []byte, token, message string) error
}

// StatusError carries a remote store's HTTP status and response text
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote store returned %d: %s", e.Status, e.Body)
}
