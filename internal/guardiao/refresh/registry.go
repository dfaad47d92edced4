// Package refresh keeps track of issued refresh tokens. Only token
// fingerprints are handed to a Registry, never the raw token.
package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownToken covers absent, revoked, expired and already used tokens.
var ErrUnknownToken = errors.New("refresh: unknown token")

// Registry stores refresh token fingerprints bound to a single user.
type Registry interface {
	// Save registers hash for userID until expiresAt.
	Save(ctx context.Context, hash, userID string, expiresAt time.Time) error

	// Consume atomically invalidates hash and returns the bound user id.
	// A token can be consumed at most once.
	Consume(ctx context.Context, hash string, now time.Time) (string, error)

	// Revoke is idempotent.
	Revoke(ctx context.Context, hash string) error

	// RevokeUser invalidates every token bound to userID.
	RevokeUser(ctx context.Context, userID string) error

	// Sweep drops expired entries and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}
