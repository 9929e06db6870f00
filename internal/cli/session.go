package cli

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/bookshelf/internal/catalogstore"
	"github.com/mesh-intelligence/bookshelf/internal/engine"
	"github.com/mesh-intelligence/bookshelf/internal/github"
	"github.com/mesh-intelligence/bookshelf/pkg/sqlite"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// session is an open document store plus the catalog views over it.
type session struct {
	store   types.DocumentStore
	catalog *catalogstore.Client
	engine  *engine.Engine
	close   func() error
}

// openStore builds the DocumentStore named by the configured backend.
// The returned close function releases it.
func (a *app) openStore() (types.DocumentStore, func() error, error) {
	cfg, err := a.conf.Backend(a.flags.dataDir)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config %s: %w", a.conf.Path(), err)
	}

	switch cfg.Backend {
	case types.BackendSQLite:
		backend := sqlite.NewBackend()
		if err := backend.Attach(cfg); err != nil {
			return nil, nil, err
		}
		a.logger.Debug("sqlite backend attached", "data_dir", cfg.DataDir)
		return backend, backend.Detach, nil
	default:
		opts := []github.Option{
			github.WithBranch(cfg.Branch),
			github.WithRateLimit(cfg.RequestsPerSecond),
			github.WithLogger(a.logger),
		}
		if cfg.APIURL != "" {
			opts = append(opts, github.WithBaseURL(cfg.APIURL))
		}
		client := github.NewClient(cfg.Owner, cfg.Repo, cfg.Token, opts...)
		a.logger.Debug("github backend ready", "owner", cfg.Owner, "repo", cfg.Repo)
		return client, func() error { return nil }, nil
	}
}

// openSession opens the store and, when load is true, initializes the
// engine from the current catalog document.
func (a *app) openSession(ctx context.Context, load bool) (*session, error) {
	store, closeFn, err := a.openStore()
	if err != nil {
		return nil, err
	}
	catalog := catalogstore.New(store, catalogstore.WithLogger(a.logger))
	s := &session{
		store:   store,
		catalog: catalog,
		engine:  engine.New(catalog, engine.WithLogger(a.logger)),
		close:   closeFn,
	}
	if load {
		if err := s.engine.Initialize(ctx); err != nil {
			_ = closeFn()
			return nil, err
		}
	}
	return s, nil
}
