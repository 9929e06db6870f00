package types

import (
	"context"
	"errors"
)

// ErrNotFound is returned by DocumentStore.Get when the document does not
// exist.
var ErrNotFound = errors.New("document not found")

// Document is one stored blob and the revision that identifies it.
type Document struct {
	Content  []byte
	Revision string
}

// DocumentStore is a versioned key to blob service with conditional writes.
type DocumentStore interface {
	// Get returns the current document at path.
	// Returns ErrNotFound if no document exists.
	Get(ctx context.Context, path string) (Document, error)

	// Put writes content at path and returns the new revision. When revision
	// is empty the write creates the document, which must not exist yet;
	// otherwise revision must equal the current revision. A failed
	// precondition returns a *ConflictError.
	Put(ctx context.Context, path string, content []byte, revision, message string) (string, error)
}
