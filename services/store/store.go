// Package store persists alerts, categories and the sent ledgers in SQLite.
package store

import (
	"context"
	"database/sql"
	"time"

	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"

	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

// Store is the SQLite backed persistence layer
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStore("store", "failed to open database", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.ForStore().Info().Str("path", path).Msg("Database opened")
	return s, nil
}

// New wraps an open database and applies pragmas and schema
func New(db *sql.DB) (*Store, error) {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, errors.NewStore("store", "failed to set pragma", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.NewStore("store", "failed to apply schema", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn in a transaction, rolling back on error
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStore("store", "failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStore("store", "failed to commit transaction", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
