// Package postgres provides a PostgreSQL-backed implementation of the
// app.MetadataStore port, using the pgx driver through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/domain"
)

// uniqueViolation is the SQLSTATE code reported on a primary key conflict.
const uniqueViolation = "23505"

var _ app.MetadataStore = (*Store)(nil)

// Store implements app.MetadataStore on PostgreSQL.
type Store struct{ db *sql.DB }

// Open connects with the pgx stdlib driver, verifies the connection, and
// initializes the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(ctx, db)
}

// New constructs a Store over an existing pool, initializing the schema.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS links (
token TEXT PRIMARY KEY,
storage_key TEXT NOT NULL,
filename TEXT NOT NULL,
expires_at BIGINT NOT NULL,
downloads_left BIGINT NOT NULL
);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new link row, mapping a primary key conflict to
// domain.ErrDuplicateToken.
func (s *Store) Create(ctx context.Context, link domain.Link) error {
	const q = `INSERT INTO links (token, storage_key, filename, expires_at, downloads_left) VALUES ($1,$2,$3,$4,$5)`
	_, err := s.db.ExecContext(ctx, q,
		link.Token.String(), link.StorageKey, link.Filename, link.ExpiresAt.Unix(), link.DownloadsLeft)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateToken
		}
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return nil
}

// FindByToken returns the row for token, or (nil, nil) when absent.
func (s *Store) FindByToken(ctx context.Context, token domain.Token) (*domain.Link, error) {
	const q = `SELECT token, storage_key, filename, expires_at, downloads_left FROM links WHERE token=$1`
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
	const q = `UPDATE links SET downloads_left = GREATEST(downloads_left - 1, 0) WHERE token=$1 RETURNING downloads_left`
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
	const q = `DELETE FROM links WHERE token=$1`
	if _, err := s.db.ExecContext(ctx, q, token.String()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	return nil
}

// DeleteExpired removes all rows expiring before t in a single statement and
// returns the removed records for blob cleanup.
func (s *Store) DeleteExpired(ctx context.Context, t time.Time) ([]domain.Link, error) {
	const q = `DELETE FROM links WHERE expires_at < $1 RETURNING token, storage_key, filename, expires_at, downloads_left`
	rows, err := s.db.QueryContext(ctx, q, t.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	defer rows.Close()
	var links []domain.Link
	for rows.Next() {
		var (
			link        domain.Link
			tokenStr    string
			expiresUnix int64
		)
		if err := rows.Scan(&tokenStr, &link.StorageKey, &link.Filename, &expiresUnix, &link.DownloadsLeft); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
		}
		link.Token = domain.Token(tokenStr)
		link.ExpiresAt = time.Unix(expiresUnix, 0).UTC()
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
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
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	return keys, nil
}
