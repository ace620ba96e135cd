// Package source loads the raw backlog rows of a project from the configured
// context data source.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/config"
	"github.com/metalagman/refiner/internal/db"
)

// ErrProjectNotFound is returned when the source has no such project.
var ErrProjectNotFound = errors.New("project not found")

// Source returns the raw rows of one project.
type Source interface {
	Load(ctx context.Context, projectID string) (backlog.Rows, error)
}

// Open builds the source selected by cfg. The returned close function
// releases resources owned by the source; it never closes store.
func Open(ctx context.Context, cfg config.SourceConfig, store *db.Store) (Source, func(), error) {
	switch cfg.Driver {
	case "", config.SourceSQLite:
		if store == nil {
			return nil, nil, fmt.Errorf("sqlite source requires an open database")
		}
		return NewSQLite(store), func() {}, nil
	case config.SourceYAML:
		return NewFile(cfg.Path), func() {}, nil
	case config.SourcePostgres:
		pg, err := NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported source driver %q", cfg.Driver)
	}
}

// SQLite reads rows imported into the local database.
type SQLite struct {
	store *db.Store
}

// NewSQLite wraps a store as a source.
func NewSQLite(store *db.Store) *SQLite {
	return &SQLite{store: store}
}

func (s *SQLite) Load(ctx context.Context, projectID string) (backlog.Rows, error) {
	rows, err := s.store.LoadRows(ctx, projectID)
	if errors.Is(err, db.ErrNotFound) {
		return backlog.Rows{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("load project %s: %w", projectID, err)
	}
	return rows, nil
}
