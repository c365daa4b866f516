// Package domain errors.go contains sentinel errors reused by higher layers.
package domain

import "errors"

// Policy-facing error kinds returned by the lifecycle service. The HTTP layer
// maps these to response classes; nothing below this taxonomy leaks out.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrLinkExpired         = errors.New("link has expired")
	ErrLinkExhausted       = errors.New("download limit exceeded")
	ErrFileMissing         = errors.New("file missing for live link")
	ErrCorruptedFile       = errors.New("file could not be decrypted")
	ErrUploadFailed        = errors.New("upload failed")
	ErrTokenSpaceExhausted = errors.New("token generation exhausted retries")
	ErrTTLInvalid          = errors.New("ttl invalid")
	ErrSizeExceeded        = errors.New("size exceeded")
)

// Backend fault kinds. Store implementations wrap the raw driver error with
// one of these so callers can discriminate with errors.Is without seeing
// backend-specific text.
var (
	ErrDuplicateToken = errors.New("token already exists")
	ErrBlobNotFound   = errors.New("blob not found")
	ErrStorageRead    = errors.New("storage read failed")
	ErrStorageWrite   = errors.New("storage write failed")
	ErrStorageDelete  = errors.New("storage delete failed")
)
