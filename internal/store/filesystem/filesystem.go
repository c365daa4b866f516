// Package filesystem provides a BlobStore implementation backed by the local
// filesystem. Each sealed payload lives in one immutable file under a fixed
// root directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/domain"
)

// suffix distinguishes payload files from anything else in the root.
const suffix = ".blob"

var _ app.BlobStore = (*BlobStore)(nil)

// BlobStore implements app.BlobStore on the local filesystem. Files are named
// by storage key plus a fixed suffix to simplify lookup and reconciliation.
type BlobStore struct {
	root string
}

// New returns a filesystem-backed blob store rooted at dir. The directory
// must already exist with secure permissions (0700 recommended).
func New(root string) (*BlobStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("blob root is not a directory")
	}
	return &BlobStore{root: root}, nil
}

func (b *BlobStore) path(key string) string { return filepath.Join(b.root, key+suffix) }

// Put stores data in a new file under key. The file is created exclusively:
// keys are fresh by contract, so an existing file indicates a bug upstream.
func (b *BlobStore) Put(_ context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	p := b.path(key)
	// #nosec G304: path is a fixed root plus a validated key with a fixed suffix.
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p) // drop the partial file
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return nil
}

// Get returns the stored bytes for key.
func (b *BlobStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	data, err := os.ReadFile(b.path(key)) // #nosec G304 path constructed internally
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	return data, nil
}

// Delete removes the file for key. A missing file is not an error.
func (b *BlobStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	err := os.Remove(b.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", domain.ErrStorageDelete, err)
	}
	return nil
}

// List returns the storage keys of all payload files currently present.
func (b *BlobStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, suffix))
	}
	return keys, nil
}

// validateKey enforces that the storage key is a canonical token followed by
// an optional sanitized extension. No separators and no ".." can appear, so
// the key cannot escape the root.
func validateKey(key string) error {
	if len(key) < domain.TokenLength {
		return errors.New("invalid storage key: too short")
	}
	if _, err := domain.ParseToken(key[:domain.TokenLength]); err != nil {
		return errors.New("invalid storage key: malformed token prefix")
	}
	rest := key[domain.TokenLength:]
	if strings.Contains(rest, "..") {
		return errors.New("invalid storage key: contains '..'")
	}
	for _, r := range rest {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
		default:
			return errors.New("invalid storage key: illegal character")
		}
	}
	return nil
}
