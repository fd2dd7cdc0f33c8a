package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

type SQLiteRegistry struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteRegistry opens the registry with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteRegistry(filename string) (SQLiteRegistry, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteRegistry{}, fmt.Errorf("open sqlite %s: %w", filename, err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS generations (
			name TEXT PRIMARY KEY,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			generation TEXT NOT NULL,
			key TEXT NOT NULL,
			stored_at INTEGER,
			bytes BLOB,
			PRIMARY KEY (generation, key)
		)`,
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteRegistry{}, fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return SQLiteRegistry{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteRegistry) Close() error {
	return s.db.Close()
}

func (s SQLiteRegistry) Open(ctx context.Context, name string) (Store, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO generations (name, created_at) VALUES (?, ?)",
		name, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", name, err)
	}
	return sqliteStore{registry: s, name: name}, nil
}

func (s SQLiteRegistry) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM generations ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes the generation and its entries in one transaction.
func (s SQLiteRegistry) Delete(ctx context.Context, name string) (bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE generation = ?", name); err != nil {
		return false, err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM generations WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return deleted > 0, tx.Commit()
}

type sqliteStore struct {
	registry SQLiteRegistry
	name     string
}

func (s sqliteStore) Name() string {
	return s.name
}

func (s sqliteStore) Match(ctx context.Context, key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.registry.db.QueryRowContext(ctx,
		"SELECT bytes FROM entries WHERE generation = ? AND key = ?", s.name, key).Scan(&bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s sqliteStore) Put(ctx context.Context, key string, value []byte) error {
	s.registry.writeMutex.Lock()
	defer s.registry.writeMutex.Unlock()
	var exists int
	err := s.registry.db.QueryRowContext(ctx,
		"SELECT 1 FROM generations WHERE name = ?", s.name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStoreDeleted
	}
	if err != nil {
		return err
	}
	_, err = s.registry.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO entries (generation, key, stored_at, bytes) VALUES (?, ?, ?, ?)",
		s.name, key, time.Now().Unix(), value)
	return err
}

func (s sqliteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.registry.db.QueryContext(ctx,
		"SELECT key FROM entries WHERE generation = ? ORDER BY key", s.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
