// Package cipher implements the at-rest encryption for stored payloads.
//
// A single pre-shared 256-bit key seals every blob with AES-GCM. The sealed
// output is self-describing: a fresh random nonce is prepended to the
// ciphertext so decryption needs no side channel. All operations are pure and
// safe for concurrent use.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// KeyLen is the required key length in bytes (AES-256).
const KeyLen = 32

// Errors returned by cipher operations.
var (
	ErrInvalidKey       = errors.New("encryption key must be 32 bytes")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Cipher seals and opens payloads under a fixed key.
type Cipher struct {
	aead gocipher.AEAD
	rand io.Reader
}

// New constructs a Cipher from a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext and returns nonce||ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a sealed payload produced by Encrypt. It returns
// ErrDecryptionFailed if the input is truncated, corrupted, or was sealed
// under a different key.
func (c *Cipher) Decrypt(sealed []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns {
		return nil, ErrDecryptionFailed
	}
	nonce, ct := sealed[:ns], sealed[ns:]
	plain, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}
