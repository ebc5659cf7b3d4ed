// Package store persists documents in their decomposed form: a shared token
// vocabulary, per-document position tables encoded with the position codec,
// and the bond pairs needed for structural reconstruction. All state lives
// in PostgreSQL; the package owns the schema and the address scheme.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/lexvault/lexvault/pkg/postgres"
)

//go:embed schema.sql
var schemaSQL string

// Store provides access to the positional document store.
type Store struct {
	db      *postgres.Client
	buckets int
	logger  *slog.Logger
}

// New creates a Store over an established PostgreSQL client. buckets fixes
// the bucket count for address assignment and must stay constant for the
// lifetime of the data set.
func New(db *postgres.Client, buckets int) *Store {
	return &Store{
		db:      db,
		buckets: buckets,
		logger:  slog.Default().With("component", "store"),
	}
}

// InitSchema applies the embedded schema. Safe to run on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	s.logger.Info("schema applied")
	return nil
}

// Buckets returns the configured bucket count.
func (s *Store) Buckets() int { return s.buckets }

// Ping reports whether the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
