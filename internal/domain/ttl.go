// Package domain ttl.go contains validation of link TTLs against policy bounds.
package domain

import "time"

// ValidateTTL checks that ttl is non-negative and no greater than max.
// A zero TTL is legal and produces an immediately expired link.
// Returns ErrTTLInvalid on any violation.
func ValidateTTL(ttl, maxTTL time.Duration) error {
	if ttl < 0 {
		return ErrTTLInvalid
	}
	if maxTTL > 0 && ttl > maxTTL {
		return ErrTTLInvalid
	}
	return nil
}
