// Package sqlite provides a SQLite-backed implementation of the
// app.MetadataStore port for persisting link records.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/domain"
)

var _ app.MetadataStore = (*Store)(nil)

// Store implements app.MetadataStore using SQLite (via database/sql). It is
// safe for concurrent use; database/sql manages connection pooling and
// serialization.
type Store struct{ db *sql.DB }

// New constructs a Store, initializing the required schema if absent.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `CREATE TABLE IF NOT EXISTS links (
token TEXT PRIMARY KEY,
storage_key TEXT NOT NULL,
filename TEXT NOT NULL,
expires_at INTEGER NOT NULL,
downloads_left INTEGER NOT NULL
);`
	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a new link row. A primary key conflict on token maps to
// domain.ErrDuplicateToken so the caller can regenerate.
func (s *Store) Create(ctx context.Context, link domain.Link) error {
	const q = `INSERT INTO links (token, storage_key, filename, expires_at, downloads_left) VALUES (?,?,?,?,?)`
	_, err := s.db.ExecContext(ctx, q,
		link.Token.String(), link.StorageKey, link.Filename, link.ExpiresAt.Unix(), link.DownloadsLeft)
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return domain.ErrDuplicateToken
		}
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return nil
}

// FindByToken returns the row for token, or (nil, nil) when absent.
func (s *Store) FindByToken(ctx context.Context, token domain.Token) (*domain.Link, error) {
	const q = `SELECT token, storage_key, filename, expires_at, downloads_left FROM links WHERE token=?`
	var (
		link        domain.Link
		tokenStr    string
		expiresUnix int64
	)
	row := s.db.QueryRowContext(ctx, q, token.String())
	if err := row.Scan(&tokenStr, &link.StorageKey, &link.Filename, &expiresUnix, &link.DownloadsLeft); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	link.Token = domain.Token(tokenStr)
	link.ExpiresAt = time.Unix(expiresUnix, 0).UTC()
	return &link, nil
}

// DecrementDownloads atomically decrements the counter, flooring at zero, and
// returns the new value. An absent token reports zero.
func (s *Store) DecrementDownloads(ctx context.Context, token domain.Token) (int64, error) {
	const q = `UPDATE links SET downloads_left = MAX(downloads_left - 1, 0) WHERE token=? RETURNING downloads_left`
	var left int64
	row := s.db.QueryRowContext(ctx, q, token.String())
	if err := row.Scan(&left); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return left, nil
}

// Delete removes the row for token. Deleting an absent token is a no-op.
func (s *Store) Delete(ctx context.Context, token domain.Token) error {
	const q = `DELETE FROM links WHERE token=?`
	if _, err := s.db.ExecContext(ctx, q, token.String()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	return nil
}

// DeleteExpired selects rows expiring before t and deletes them in one
// transaction, returning the records for blob cleanup.
func (s *Store) DeleteExpired(ctx context.Context, t time.Time) ([]domain.Link, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT token, storage_key, filename, expires_at, downloads_left FROM links WHERE expires_at < ?`
	rows, err := tx.QueryContext(ctx, sel, t.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	var links []domain.Link
	for rows.Next() {
		var (
			link        domain.Link
			tokenStr    string
			expiresUnix int64
		)
		if err = rows.Scan(&tokenStr, &link.StorageKey, &link.Filename, &expiresUnix, &link.DownloadsLeft); err != nil {
			if cErr := rows.Close(); cErr != nil {
				return nil, fmt.Errorf("scan error: %v; close error: %w", err, cErr)
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
		}
		link.Token = domain.Token(tokenStr)
		link.ExpiresAt = time.Unix(expiresUnix, 0).UTC()
		links = append(links, link)
	}
	if cErr := rows.Close(); cErr != nil {
		err = cErr
		return nil, cErr
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	const del = `DELETE FROM links WHERE expires_at < ?`
	if _, err = tx.ExecContext(ctx, del, t.Unix()); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	return links, nil
}

// ListStorageKeys returns the storage keys of all live rows.
func (s *Store) ListStorageKeys(ctx context.Context) ([]string, error) {
	const q = `SELECT storage_key FROM links`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	return keys, nil
}
