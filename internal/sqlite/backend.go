// Package sqlite implements types.DocumentStore in a local SQLite database.
// Every accepted write is kept as a revision, so the database doubles as an
// offline history of the catalog.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// DatabaseFile is the database file name inside DataDir.
const DatabaseFile = "shelf.db"

// timeLayout is a fixed-width UTC timestamp layout.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Backend lifecycle errors.
var (
	ErrDetached        = errors.New("sqlite backend is detached")
	ErrAlreadyAttached = errors.New("sqlite backend is already attached")
)

// Revision describes one accepted write.
type Revision struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent,omitempty"` // Empty for the write that created the document.
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend is a DocumentStore over SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	dataDir  string
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (creating if needed) DataDir/shelf.db and applies the schema.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendSQLite {
		return fmt.Errorf("%w: sqlite backend cannot serve %q", types.ErrBackendUnknown, config.Backend)
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dsn := "file:" + filepath.Join(dataDir, DatabaseFile) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers inside this process.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	b.db = db
	b.dataDir = dataDir
	b.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.attached = false
	return err
}

// Get returns the current document at path, or types.ErrNotFound.
func (b *Backend) Get(ctx context.Context, path string) (types.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.Document{}, &types.StoreError{Op: "get", Err: ErrDetached}
	}

	var doc types.Document
	err := b.db.QueryRowContext(ctx,
		`SELECT content, revision FROM documents WHERE path = ?`, path,
	).Scan(&doc.Content, &doc.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Document{}, types.ErrNotFound
	}
	if err != nil {
		return types.Document{}, &types.StoreError{Op: "get", Err: err}
	}
	return doc, nil
}

// Put writes content at path conditioned on revision and records the write
// in the revision history. The compare and swap is a single statement, so
// concurrent writers from other processes are detected too.
func (b *Backend) Put(ctx context.Context, path string, content []byte, revision, message string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return "", &types.StoreError{Op: "put", Err: ErrDetached}
	}
	if content == nil {
		content = []byte{}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &types.StoreError{Op: "put", Err: err}
	}
	defer tx.Rollback()

	next := generateUUID()
	now := time.Now().UTC().Format(timeLayout)

	var res sql.Result
	if revision == "" {
		res, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (path, revision, content, updated_at) VALUES (?, ?, ?, ?)`,
			path, next, content, now)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE documents SET revision = ?, content = ?, updated_at = ? WHERE path = ? AND revision = ?`,
			next, content, now, path, revision)
	}
	if err != nil {
		return "", &types.StoreError{Op: "put", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", &types.StoreError{Op: "put", Err: err}
	}
	if n == 0 {
		return "", &types.ConflictError{Path: path, Revision: revision}
	}

	var parent sql.NullString
	if revision != "" {
		parent = sql.NullString{String: revision, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO revisions (revision, path, parent, message, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		next, path, parent, message, content, now,
	); err != nil {
		return "", &types.StoreError{Op: "put", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return "", &types.StoreError{Op: "put", Err: err}
	}
	return next, nil
}

// History returns the revisions of path, newest first.
func (b *Backend) History(ctx context.Context, path string) ([]Revision, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, ErrDetached
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT revision, parent, message, created_at FROM revisions WHERE path = ? ORDER BY rowid DESC`, path)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var (
			r       Revision
			parent  sql.NullString
			created string
		)
		if err := rows.Scan(&r.ID, &parent, &r.Message, &created); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.Parent = parent.String
		r.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// generateUUID generates a UUID v7 revision token.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
