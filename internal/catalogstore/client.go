// Package catalogstore reads and writes the catalog document as one
// versioned blob, using the store's conditional write for optimistic
// concurrency.
package catalogstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mesh-intelligence/bookshelf/internal/codec"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// DocumentPath is the catalog location relative to the repository root.
const DocumentPath = "catalog.yml"

// Snapshot pairs a catalog with the revision it was read at. An empty
// Revision means no document exists yet and the next save creates it.
type Snapshot struct {
	Catalog  types.Catalog
	Revision string
}

// Client loads and saves the catalog through a DocumentStore.
type Client struct {
	store  types.DocumentStore
	path   string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for decode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithPath overrides DocumentPath.
func WithPath(path string) Option {
	return func(c *Client) {
		c.path = path
	}
}

// New returns a Client backed by store.
func New(store types.DocumentStore, opts ...Option) *Client {
	c := &Client{
		store:  store,
		path:   DocumentPath,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the document path the client reads and writes.
func (c *Client) Path() string {
	return c.path
}

// Load fetches and decodes the catalog. A missing document yields an empty
// catalog and an empty revision. Other store failures are returned as-is;
// DocumentStore implementations report them as *types.StoreError.
func (c *Client) Load(ctx context.Context) (Snapshot, error) {
	doc, err := c.store.Get(ctx, c.path)
	if errors.Is(err, types.ErrNotFound) {
		c.logger.Info("catalog absent; first save will create it", "path", c.path)
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s: %w", c.path, err)
	}

	catalog, issues := codec.Decode(doc.Content)
	for _, issue := range issues {
		c.logger.Warn("catalog decode", "path", c.path, "line", issue.Line, "reason", issue.Reason)
	}
	return Snapshot{Catalog: catalog, Revision: doc.Revision}, nil
}

// Save encodes catalog and writes it conditioned on revision, returning the
// new revision. An empty revision creates the document. A stale revision
// fails with a *types.ConflictError; Save never retries or merges.
func (c *Client) Save(ctx context.Context, catalog types.Catalog, revision, message string) (string, error) {
	next, err := c.store.Put(ctx, c.path, codec.Encode(catalog), revision, message)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", c.path, err)
	}
	if next == "" {
		return "", fmt.Errorf("save %s: %w", c.path, &types.StoreError{Op: "put", Message: "store returned no revision"})
	}
	return next, nil
}
