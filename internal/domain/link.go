// Package domain link.go defines the link record and its derived lifecycle state.
package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Link is the unit of per-token state tracked by the metadata store. All
// fields except DownloadsLeft are immutable after creation.
type Link struct {
	Token         Token
	StorageKey    string
	Filename      string
	ExpiresAt     time.Time
	DownloadsLeft int64
}

// State is the derived lifecycle state of a link. It is never stored.
type State int

const (
	// StateActive means the link may still serve content.
	StateActive State = iota
	// StateExpired means now is at or past ExpiresAt. Terminal.
	StateExpired
	// StateExhausted means DownloadsLeft reached zero. Terminal.
	StateExhausted
)

// State derives the lifecycle state at the given instant. Expiry is evaluated
// before quota, so a link that is both expired and exhausted reports expired.
func (l Link) State(now time.Time) State {
	if !now.Before(l.ExpiresAt) {
		return StateExpired
	}
	if l.DownloadsLeft <= 0 {
		return StateExhausted
	}
	return StateActive
}

// Terminal reports whether the state permits no further downloads.
func (s State) Terminal() bool { return s != StateActive }

// StorageKeyFor derives the blob key for a token: the token plus the original
// filename's extension, sanitized so the key never contains path separators.
func StorageKeyFor(token Token, filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	ext = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			return r
		}
		return -1
	}, ext)
	return token.String() + ext
}
