// Package app defines the application layer "ports" (interfaces) that the
// link lifecycle core depends upon. It follows a hexagonal (ports & adapters)
// design: this package declares what the core needs, while adapter packages
// (filesystem/S3 blob storage, SQLite/Postgres/Redis metadata storage, HTTP
// layer, janitor jobs) provide concrete implementations. No I/O, SQL, or
// network concerns belong here.
package app

import (
	"context"
	"time"

	"github.com/sealbox/sealbox/internal/domain"
)

// Clock abstracts time to enable deterministic testing of expiry logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// Cipher is the at-rest encryption port. The sealed output must be
// self-describing so decryption needs no side channel.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(sealed []byte) ([]byte, error)
}

// BlobStore is the durable byte storage port. It holds only encrypted
// payloads, addressed by an opaque key. Implementations have no awareness of
// the metadata store.
type BlobStore interface {
	// Put stores data durably under key. Callers always use fresh keys;
	// overwriting an existing key is undefined. Backend failures wrap
	// domain.ErrStorageWrite.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the bytes stored under key. An absent key yields
	// domain.ErrBlobNotFound; other backend failures wrap
	// domain.ErrStorageRead.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob under key. Deleting an absent key is not an
	// error. Backend failures wrap domain.ErrStorageDelete.
	Delete(ctx context.Context, key string) error

	// List returns all keys currently present. Used only by reconciliation.
	List(ctx context.Context) ([]string, error)
}

// MetadataStore is the durable record storage port, keyed by token.
// Implementations have no awareness of the blob store.
type MetadataStore interface {
	// Create inserts a new link record. A token collision yields
	// domain.ErrDuplicateToken; other backend failures wrap
	// domain.ErrStorageWrite.
	Create(ctx context.Context, link domain.Link) error

	// FindByToken returns the record for token, or (nil, nil) when absent.
	FindByToken(ctx context.Context, token domain.Token) (*domain.Link, error)

	// DecrementDownloads atomically decrements the remaining-download counter
	// and returns the new value. The counter never goes below zero: a record
	// already at zero stays at zero and zero is returned.
	DecrementDownloads(ctx context.Context, token domain.Token) (int64, error)

	// Delete removes the record for token. Deleting an absent token is not an
	// error.
	Delete(ctx context.Context, token domain.Token) error

	// DeleteExpired removes all records whose expiry precedes t and returns
	// them so the caller can clean up their blobs.
	DeleteExpired(ctx context.Context, t time.Time) ([]domain.Link, error)

	// ListStorageKeys returns the storage keys of all live records. Used only
	// by reconciliation.
	ListStorageKeys(ctx context.Context) ([]string, error)
}
