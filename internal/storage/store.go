// Package storage owns every persisted entity. All other components go
// through the Repository contract; composite operations are
// individually transactional so one failed entry never corrupts
// another's rows.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"ArticleRelay/internal/domain"
	"ArticleRelay/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite-backed repository.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	sb     sq.StatementBuilderType

	rewriteMu sync.Mutex
	rewriteLk map[string]*sync.Mutex
}

var _ ports.Repository = (*Store)(nil)

// Open creates or opens the database at path and applies pragmas and
// schema. SQLite allows a single writer, so the pool is pinned to one
// connection; WAL keeps readers unblocked during writes.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:        db,
		logger:    logger,
		sb:        sq.StatementBuilder.PlaceholderFormat(sq.Question),
		rewriteLk: map[string]*sync.Mutex{},
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the raw handle for tests and migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// storageErr wraps any I/O failure into the class callers treat as
// fatal for the current entry.
func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}
