package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore persists credentials in the credentials table, one row per
// (namespace, key).
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// NewSQLiteStore creates a store over db scoped to namespace. The credentials
// table must exist (see migrations).
func NewSQLiteStore(db *sql.DB, namespace string) *SQLiteStore {
	return &SQLiteStore{db: db, namespace: namespace}
}

// Namespace returns the namespace this store reads and writes.
func (s *SQLiteStore) Namespace() string {
	return s.namespace
}

// Set writes value under key as a single upsert.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: setting %s: %w", ErrWriteFailed, key, err)
	}
	return nil
}

// Get returns the value under key, or ok=false when absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM credentials WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: getting %s: %w", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// Remove deletes key. Deleting an absent key succeeds.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE namespace = ? AND key = ?",
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("%w: removing %s: %w", ErrWriteFailed, key, err)
	}
	return nil
}
