package token

import (
	"context"
	"time"
)

// Repo manages server-side storage of token metadata. Tokens sent to clients
// are opaque random strings; this repo stores the associated metadata (user,
// client, session, scope, etc.) keyed by the token string.
type Repo interface {
	Upsert(ctx context.Context, t *StoredToken) error

	// Get returns the metadata for a token string, or ErrTokenNotFound.
	Get(ctx context.Context, tokenStr string) (*StoredToken, error)

	// Revoke marks the token revoked at the given time. Revoking an already
	// revoked token keeps the original timestamp. Unknown tokens return
	// ErrTokenNotFound.
	Revoke(ctx context.Context, tokenStr string, at time.Time) error

	// RevokeForSession revokes every unrevoked token minted through the
	// given browser session.
	RevokeForSession(ctx context.Context, sessionID int64, at time.Time) error

	// DeleteExpiredBefore removes tokens whose expiry predates the cutoff
	// and reports how many were dropped.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
