// Package engine owns the in-memory catalog and its revision, applies add and
// remove mutations with validation, and rolls a mutation back when the store
// rejects it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/mesh-intelligence/bookshelf/internal/catalogstore"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// ErrNotInitialized is returned by mutations attempted before Initialize
// has succeeded.
var ErrNotInitialized = errors.New("engine is not initialized")

// CatalogStore loads and conditionally saves the catalog document.
// *catalogstore.Client implements it.
type CatalogStore interface {
	Load(ctx context.Context) (catalogstore.Snapshot, error)
	Save(ctx context.Context, catalog types.Catalog, revision, message string) (string, error)
}

// Engine holds one session's view of the catalog. All methods are safe for
// concurrent use; mutations are serialized so that at most one save is in
// flight per Engine.
type Engine struct {
	mu          sync.Mutex
	store       CatalogStore
	logger      *slog.Logger
	initialized bool
	catalog     types.Catalog
	revision    string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for commit and rollback events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New returns an Engine backed by store. Call Initialize before mutating.
func New(store CatalogStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize loads the catalog from the store and adopts it. Calling it again
// re-syncs from the store. On failure the previous state is kept.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	e.catalog = snap.Catalog.Clone()
	e.revision = snap.Revision
	e.initialized = true
	e.logger.Debug("catalog loaded", "books", e.catalog.Len(), "revision", e.revision)
	return nil
}

// Books returns a copy of the committed catalog entries in order.
func (e *Engine) Books() []types.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.catalog.Books)
}

// Revision returns the revision of the committed catalog. It is empty when
// no document exists in the store yet.
func (e *Engine) Revision() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// IndexOf returns the index of the book with the given slug, or -1.
func (e *Engine) IndexOf(slug string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.IndexOf(slug)
}

// AddBook validates fields, appends the book and saves the catalog. Fields
// are trimmed and absent type, branch and path take their defaults. On any
// save failure the append is undone and the error returned; the catalog is
// then exactly as it was before the call.
func (e *Engine) AddBook(ctx context.Context, fields types.Book) (types.Book, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return types.Book{}, ErrNotInitialized
	}
	book := fields.Trimmed().WithDefaults()
	if err := e.validateNew(book); err != nil {
		return types.Book{}, err
	}

	prev := e.catalog.Books
	n := len(prev)
	e.catalog.Books = append(e.catalog.Books, book)

	rev, err := e.store.Save(ctx, e.catalog, e.revision, "Add book: "+book.Name)
	if err != nil {
		// Slicing nil keeps it nil.
		e.catalog.Books = prev[:n:n]
		e.logger.Warn("add rolled back", "slug", book.Slug, "revision", e.revision, "error", err)
		return types.Book{}, fmt.Errorf("add book %q: %w", book.Slug, err)
	}

	e.revision = rev
	e.logger.Info("book added", "slug", book.Slug, "index", n, "revision", rev)
	return book, nil
}

// RemoveBook removes the book at index and saves the catalog. On any save
// failure the book is reinserted at index and the error returned.
func (e *Engine) RemoveBook(ctx context.Context, index int) (types.Book, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return types.Book{}, ErrNotInitialized
	}
	if index < 0 || index >= len(e.catalog.Books) {
		return types.Book{}, &types.ValidationError{Rule: types.RuleIndexRange, Field: "index", Value: strconv.Itoa(index)}
	}

	removed := e.catalog.Books[index]
	e.catalog.Books = slices.Delete(e.catalog.Books, index, index+1)

	rev, err := e.store.Save(ctx, e.catalog, e.revision, "Remove book: "+removed.Name)
	if err != nil {
		e.catalog.Books = slices.Insert(e.catalog.Books, index, removed)
		e.logger.Warn("remove rolled back", "slug", removed.Slug, "index", index, "revision", e.revision, "error", err)
		return types.Book{}, fmt.Errorf("remove book %q: %w", removed.Slug, err)
	}

	e.revision = rev
	e.logger.Info("book removed", "slug", removed.Slug, "index", index, "revision", rev)
	return removed, nil
}

// validateNew checks a trimmed book against the catalog before it is added.
// The caller must hold e.mu.
func (e *Engine) validateNew(b types.Book) error {
	for _, f := range []struct{ name, value string }{
		{"name", b.Name},
		{"slug", b.Slug},
		{"repo", b.Repo},
	} {
		if f.value == "" {
			return &types.ValidationError{Rule: types.RuleRequired, Field: f.name}
		}
	}
	if !types.ValidSlug(b.Slug) {
		return &types.ValidationError{Rule: types.RuleSlugFormat, Field: "slug", Value: b.Slug}
	}
	if e.catalog.IndexOf(b.Slug) >= 0 {
		return &types.ValidationError{Rule: types.RuleSlugDuplicate, Field: "slug", Value: b.Slug}
	}
	return nil
}
