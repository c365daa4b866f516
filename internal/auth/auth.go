// Package auth issues and verifies the bearer tokens that gate uploads.
// Tokens are HS256 JWTs carrying the caller's email as subject.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "sealbox"

// ErrInvalidCredential is returned for malformed, forged, or expired tokens.
var ErrInvalidCredential = errors.New("invalid credential")

// Issuer signs and verifies access tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	// now is swappable for tests; nil means time.Now.
	now func() time.Time
}

// New returns an Issuer. The secret must be non-empty.
func New(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &Issuer{secret: secret, ttl: ttl}, nil
}

func (i *Issuer) timeNow() time.Time {
	if i.now != nil {
		return i.now()
	}
	return time.Now()
}

// Issue returns a signed token for subject, valid for the configured TTL.
func (i *Issuer) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("auth: empty subject")
	}
	now := i.timeNow()
	claims := jwt.RegisteredClaims{
		Issuer:    issuerName,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its subject.
func (i *Issuer) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return i.secret, nil
		},
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.timeNow),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidCredential
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidCredential
	}
	return claims.Subject, nil
}
