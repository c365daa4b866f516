// Package redis provides a Redis-backed implementation of the
// app.MetadataStore port. Each link is a hash keyed by token, with a set
// index of live tokens for sweeps and reconciliation.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/domain"
)

const (
	// indexKey is the set of all live tokens.
	indexKey = "sealbox:links"
	// hashPrefix namespaces per-link hashes.
	hashPrefix = "sealbox:link:"
)

// decrScript decrements downloads_left without going below zero and returns
// the new value. Runs atomically server-side.
var decrScript = redis.NewScript(`
local left = redis.call('HGET', KEYS[1], 'downloads_left')
if not left then return 0 end
left = tonumber(left)
if left <= 0 then return 0 end
left = left - 1
redis.call('HSET', KEYS[1], 'downloads_left', left)
return left
`)

var _ app.MetadataStore = (*Store)(nil)

// Store implements app.MetadataStore on Redis.
type Store struct{ rdb *redis.Client }

// Open connects to addr, verifies the connection, and returns a Store.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Store{rdb: rdb}, nil
}

// New wraps an existing client.
func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Close releases the underlying client.
func (s *Store) Close() error { return s.rdb.Close() }

func hashKey(token domain.Token) string { return hashPrefix + token.String() }

// Create inserts a new link hash. HSETNX on the token field provides the
// uniqueness check; a second writer loses and gets domain.ErrDuplicateToken.
func (s *Store) Create(ctx context.Context, link domain.Link) error {
	key := hashKey(link.Token)
	ok, err := s.rdb.HSetNX(ctx, key, "token", link.Token.String()).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if !ok {
		return domain.ErrDuplicateToken
	}
	if err := s.rdb.HSet(ctx, key,
		"storage_key", link.StorageKey,
		"filename", link.Filename,
		"expires_at", link.ExpiresAt.Unix(),
		"downloads_left", link.DownloadsLeft,
	).Err(); err != nil {
		_ = s.rdb.Del(ctx, key).Err()
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if err := s.rdb.SAdd(ctx, indexKey, link.Token.String()).Err(); err != nil {
		_ = s.rdb.Del(ctx, key).Err()
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return nil
}

// FindByToken returns the link for token, or (nil, nil) when absent.
func (s *Store) FindByToken(ctx context.Context, token domain.Token) (*domain.Link, error) {
	fields, err := s.rdb.HGetAll(ctx, hashKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return linkFromFields(token, fields)
}

func linkFromFields(token domain.Token, fields map[string]string) (*domain.Link, error) {
	expiresUnix, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad expires_at for %s: %w", domain.ErrStorageRead, token, err)
	}
	left, err := strconv.ParseInt(fields["downloads_left"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad downloads_left for %s: %w", domain.ErrStorageRead, token, err)
	}
	return &domain.Link{
		Token:         token,
		StorageKey:    fields["storage_key"],
		Filename:      fields["filename"],
		ExpiresAt:     time.Unix(expiresUnix, 0).UTC(),
		DownloadsLeft: left,
	}, nil
}

// DecrementDownloads runs the floored decrement script. An absent token
// reports zero.
func (s *Store) DecrementDownloads(ctx context.Context, token domain.Token) (int64, error) {
	left, err := decrScript.Run(ctx, s.rdb, []string{hashKey(token)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return left, nil
}

// Delete removes the link hash and its index entry. Absent tokens are a no-op.
func (s *Store) Delete(ctx context.Context, token domain.Token) error {
	if err := s.rdb.Del(ctx, hashKey(token)).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	if err := s.rdb.SRem(ctx, indexKey, token.String()).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	return nil
}

// DeleteExpired walks the token index, removing every link whose expiry
// precedes t, and returns the removed records for blob cleanup.
func (s *Store) DeleteExpired(ctx context.Context, t time.Time) ([]domain.Link, error) {
	tokens, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	var removed []domain.Link
	for _, tokenStr := range tokens {
		token := domain.Token(tokenStr)
		link, err := s.FindByToken(ctx, token)
		if err != nil {
			return removed, err
		}
		if link == nil {
			// Hash vanished out from under the index; drop the stale entry.
			_ = s.rdb.SRem(ctx, indexKey, tokenStr).Err()
			continue
		}
		if !link.ExpiresAt.Before(t) {
			continue
		}
		if err := s.Delete(ctx, token); err != nil {
			return removed, err
		}
		removed = append(removed, *link)
	}
	return removed, nil
}

// ListStorageKeys returns the storage keys of all live links.
func (s *Store) ListStorageKeys(ctx context.Context) ([]string, error) {
	tokens, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	var keys []string
	for _, tokenStr := range tokens {
		key, err := s.rdb.HGet(ctx, hashPrefix+tokenStr, "storage_key").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
