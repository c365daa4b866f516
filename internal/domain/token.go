// Package domain token.go contains functions to generate, parse, and validate download tokens.
package domain

import (
	"crypto/rand"
)

// TokenLength is the fixed length of every download token.
const TokenLength = 8

// tokenAlphabet is the character set tokens are drawn from. 36^8 possible
// values; collisions are handled by a bounded retry at creation time.
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Token is the opaque identifier handed to a consumer in place of a direct
// storage reference. It is 8 characters drawn from [a-z0-9] via crypto/rand.
type Token string

// NewToken generates a cryptographically random Token. The only failure mode
// is exhaustion of the entropy source, which is not retryable.
func NewToken() (Token, error) {
	var b [TokenLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = tokenAlphabet[int(b[i])%len(tokenAlphabet)]
	}
	return Token(b[:]), nil
}

// ParseToken validates s and returns it as a Token. It enforces:
// - length == TokenLength
// - only lowercase [0-9a-z]
// Returns ErrInvalidToken on failure.
func ParseToken(s string) (Token, error) {
	if !isValidToken(s) {
		return "", ErrInvalidToken
	}
	return Token(s), nil
}

// String returns the string form of the Token.
func (t Token) String() string { return string(t) }

// Valid reports whether the token satisfies the same rules as ParseToken.
func (t Token) Valid() bool { return isValidToken(string(t)) }

// isValidToken performs validation without allocating errors.
func isValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
