package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thirtythreehz/crates/internal/shared"
)

// SQLiteStore persists entries in a single kv_entries table. The path can be
// ":memory:" for an in-memory database.
type SQLiteStore struct {
	db *sql.DB

	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path, applies pending
// migrations, and purges entries that expired while the process was away.
func NewSQLiteStore(path string, maxOpenConns, maxIdleConns int) (*SQLiteStore, error) {
	if path == "" {
		path = "crates.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.purgeExpired(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string, v any) (bool, error) {
	query := `
		SELECT payload, expires_at
		FROM kv_entries
		WHERE key = ?
	`

	var (
		payload   []byte
		expiresAt sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query entry: %w", err)
	}

	if expiresAt.Valid && !s.now().Before(expiresAt.Time) {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = ?", key); err != nil {
			return false, fmt.Errorf("failed to drop expired entry: %w", err)
		}
		return false, nil
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("failed to decode stored value: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	query := `
		INSERT INTO kv_entries (key, payload, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at, updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query, key, payload, s.expiry(ttl), s.now())
	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PutIfAbsent(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode value: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// An expired row must not keep blocking new claimants.
	_, err = tx.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to clear expired entry: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO kv_entries (key, payload, expires_at, updated_at) VALUES (?, ?, ?, ?)",
		key, payload, s.expiry(ttl), s.now())
	if err != nil {
		return false, fmt.Errorf("failed to store entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rows > 0, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expiry converts a ttl into a nullable column value.
func (s *SQLiteStore) expiry(ttl time.Duration) sql.NullTime {
	if ttl <= 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: s.now().Add(ttl), Valid: true}
}

func (s *SQLiteStore) purgeExpired() error {
	_, err := s.db.Exec("DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?", s.now())
	if err != nil {
		return fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return nil
}
