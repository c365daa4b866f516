// Package app contains the link lifecycle orchestration for SealBox. The
// Service owns all cross-store ordering, compensation, and cleanup logic; it
// holds no mutable state of its own, so it is reentrant and safe to replicate
// across processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sealbox/sealbox/internal/cipher"
	"github.com/sealbox/sealbox/internal/domain"
)

// maxTokenAttempts bounds regeneration when a freshly generated token
// collides with an existing record.
const maxTokenAttempts = 5

// compensationTimeout bounds best-effort compensating deletes so they run to
// completion even when the caller's context is already cancelled.
const compensationTimeout = 5 * time.Second

// Service orchestrates Upload and Consume across the blob and metadata
// stores. The two stores offer no joint transaction: Upload writes the blob
// strictly before the metadata record and compensates by deleting the blob if
// the record cannot be written, so no live record ever references a missing
// blob and no blob is left orphaned under normal failure modes.
type Service struct {
	Blobs  BlobStore
	Meta   MetadataStore
	Cipher Cipher
	Clock  Clock
	Logger *slog.Logger

	// NewToken overrides token generation; nil means domain.NewToken.
	NewToken func() (domain.Token, error)

	MaxBytes     int64
	MaxTTL       time.Duration
	DefaultTTL   time.Duration
	DefaultQuota int64
}

// UploadRequest carries one upload. TTL and Quota are optional overrides;
// nil selects the service's configured default. A zero TTL is honored
// literally and produces a link that is already expired.
type UploadRequest struct {
	Content  []byte
	Filename string
	TTL      *time.Duration
	Quota    *int64
}

// UploadResult is returned to the producer.
type UploadResult struct {
	Token     domain.Token
	ExpiresAt time.Time
}

// Download is returned to the consumer on a successful Consume.
type Download struct {
	Content  []byte
	Filename string
}

// Upload encrypts the payload, writes the blob, then writes the metadata
// record. Token collisions are retried a bounded number of times; a failed
// metadata write triggers a best-effort compensating blob delete.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if len(req.Content) == 0 || (s.MaxBytes > 0 && int64(len(req.Content)) > s.MaxBytes) {
		return nil, domain.ErrSizeExceeded
	}
	ttl := s.DefaultTTL
	if req.TTL != nil {
		ttl = *req.TTL
	}
	if err := domain.ValidateTTL(ttl, s.MaxTTL); err != nil {
		return nil, err
	}
	quota := s.DefaultQuota
	if req.Quota != nil {
		quota = *req.Quota
	}
	if quota < 1 {
		return nil, fmt.Errorf("%w: quota must be at least 1", domain.ErrUploadFailed)
	}

	sealed, err := s.Cipher.Encrypt(req.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	expiresAt := s.Clock.Now().Add(ttl)

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, genErr := s.generateToken()
		if genErr != nil { // entropy exhaustion, not retryable
			return nil, genErr
		}
		key := domain.StorageKeyFor(token, req.Filename)

		// Blob before metadata: a record must never exist without its blob.
		if err := s.Blobs.Put(ctx, key, sealed); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
		}

		link := domain.Link{
			Token:         token,
			StorageKey:    key,
			Filename:      req.Filename,
			ExpiresAt:     expiresAt,
			DownloadsLeft: quota,
		}
		createErr := s.Meta.Create(ctx, link)
		if createErr == nil {
			return &UploadResult{Token: token, ExpiresAt: expiresAt}, nil
		}

		// The blob under the failed token's key is now an orphan either way.
		s.compensateBlob(ctx, key)

		if errors.Is(createErr, domain.ErrDuplicateToken) {
			s.log().Warn("token collision, regenerating", "attempt", attempt+1)
			continue
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, createErr)
	}
	return nil, domain.ErrTokenSpaceExhausted
}

// Consume validates the token, evaluates link state, and serves the decrypted
// payload. Terminal links are cleaned up and denied; the counter is
// decremented only after a successful read and decrypt, so a failed decrypt
// does not consume a use.
func (s *Service) Consume(ctx context.Context, tokenStr string) (*Download, error) {
	token, err := domain.ParseToken(tokenStr)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	link, err := s.Meta.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrInvalidToken
	}

	switch link.State(s.Clock.Now()) {
	case domain.StateExpired:
		s.cleanup(ctx, *link)
		return nil, domain.ErrLinkExpired
	case domain.StateExhausted:
		s.cleanup(ctx, *link)
		return nil, domain.ErrLinkExhausted
	}

	sealed, err := s.Blobs.Get(ctx, link.StorageKey)
	if errors.Is(err, domain.ErrBlobNotFound) {
		// Live record without a backing blob is an integrity fault; purge the
		// stray record so the next caller gets a clean invalid-token answer.
		s.purgeMetadata(ctx, token)
		return nil, domain.ErrFileMissing
	}
	if err != nil {
		return nil, err
	}

	plain, err := s.Cipher.Decrypt(sealed)
	if err != nil {
		// System fault, possibly operator-fixable; keep the record.
		if !errors.Is(err, cipher.ErrDecryptionFailed) {
			s.log().Error("decrypt", "error", err)
		}
		return nil, domain.ErrCorruptedFile
	}

	if _, err := s.Meta.DecrementDownloads(ctx, token); err != nil {
		return nil, err
	}
	return &Download{Content: plain, Filename: link.Filename}, nil
}

// cleanup removes a terminal link's metadata record and blob. Both deletes
// are idempotent and best-effort; the primary contract is denying access, not
// freeing storage immediately, so failures are logged and never surfaced.
func (s *Service) cleanup(ctx context.Context, link domain.Link) {
	cctx, cancel := compensationContext(ctx)
	defer cancel()
	if err := s.Meta.Delete(cctx, link.Token); err != nil {
		s.log().Error("cleanup metadata", "error", err)
	}
	if err := s.Blobs.Delete(cctx, link.StorageKey); err != nil {
		s.log().Error("cleanup blob", "key", link.StorageKey, "error", err)
	}
}

// compensateBlob deletes a blob written during a failed Upload attempt. It
// must still run when the caller's context has already timed out.
func (s *Service) compensateBlob(ctx context.Context, key string) {
	cctx, cancel := compensationContext(ctx)
	defer cancel()
	if err := s.Blobs.Delete(cctx, key); err != nil {
		s.log().Error("compensating blob delete", "key", key, "error", err)
	}
}

// purgeMetadata removes a metadata record detected as stray (no backing blob).
func (s *Service) purgeMetadata(ctx context.Context, token domain.Token) {
	cctx, cancel := compensationContext(ctx)
	defer cancel()
	if err := s.Meta.Delete(cctx, token); err != nil {
		s.log().Error("purge stray metadata", "error", err)
	}
}

// compensationContext detaches cleanup work from the caller's cancellation
// while still bounding it.
func compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}

func (s *Service) generateToken() (domain.Token, error) {
	if s.NewToken != nil {
		return s.NewToken()
	}
	return domain.NewToken()
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
