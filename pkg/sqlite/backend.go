// Package sqlite provides the public API for the SQLite document store.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/bookshelf/internal/sqlite"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// Backend is a DocumentStore that must be attached before use.
type Backend interface {
	types.DocumentStore
	Attach(config types.Config) error
	Detach() error
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "/var/lib/shelf",
//	})
//	defer backend.Detach()
func NewBackend() Backend {
	return sqlite.NewBackend()
}
