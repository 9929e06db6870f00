// Package memstore is an in-memory DocumentStore. Revisions are UUID v7
// strings. It backs the content API fake in contentstest and the engine
// tests.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// Commit records one accepted write.
type Commit struct {
	Path     string
	Revision string
	Message  string
	Content  []byte
}

// Store is a concurrency-safe in-memory DocumentStore.
type Store struct {
	mu        sync.Mutex
	docs      map[string]types.Document
	history   []Commit
	putErrors []error
	getErr    error
}

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]types.Document)}
}

// Get returns the current document at path, or types.ErrNotFound.
func (s *Store) Get(ctx context.Context, path string) (types.Document, error) {
	if err := ctx.Err(); err != nil {
		return types.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return types.Document{}, s.getErr
	}
	doc, ok := s.docs[path]
	if !ok {
		return types.Document{}, types.ErrNotFound
	}
	return types.Document{Content: clone(doc.Content), Revision: doc.Revision}, nil
}

// Put writes content at path if revision matches the current revision, or
// if revision is empty and no document exists.
func (s *Store) Put(ctx context.Context, path string, content []byte, revision, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.putErrors) > 0 {
		err := s.putErrors[0]
		s.putErrors = s.putErrors[1:]
		return "", err
	}

	current, exists := s.docs[path]
	if (exists && current.Revision != revision) || (!exists && revision != "") {
		return "", &types.ConflictError{Path: path, Revision: revision}
	}

	next := newRevision()
	s.docs[path] = types.Document{Content: clone(content), Revision: next}
	s.history = append(s.history, Commit{Path: path, Revision: next, Message: message, Content: clone(content)})
	return next, nil
}

// Seed stores content at path unconditionally and returns its revision.
func (s *Store) Seed(path string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev := newRevision()
	s.docs[path] = types.Document{Content: clone(content), Revision: rev}
	return rev
}

// FailNextPut makes the next Put calls return errs, one per call, before
// any store state is examined.
func (s *Store) FailNextPut(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErrors = append(s.putErrors, errs...)
}

// FailGet makes every Get return err until called again with nil.
func (s *Store) FailGet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// History returns the accepted writes in order.
func (s *Store) History() []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Commit, len(s.history))
	copy(out, s.history)
	return out
}

func newRevision() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
