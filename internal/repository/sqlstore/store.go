// Package sqlstore implements repository.Store on any sqlx database the
// database package can open (postgres, pgx or sqlite). Queries are written
// with ? placeholders and rebound for the driver.
package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/moodlens/moodlens-backend/internal/repository"
)

// Store implements repository.Store
type Store struct {
	db *sqlx.DB
}

var _ repository.Store = (*Store)(nil)

// New creates a store over an open, migrated database
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
