package oauth2

import (
	"context"
	"time"
)

// GrantRepo is the persistence boundary for authorization grants. Create
// assigns the grant ID.
type GrantRepo interface {
	Create(ctx context.Context, grant *AuthorizationGrant) error

	// GetByID returns the grant or ErrGrantNotFound.
	GetByID(ctx context.Context, id int64) (*AuthorizationGrant, error)

	// GetByCode returns the grant owning the authorization code, or
	// ErrGrantNotFound.
	GetByCode(ctx context.Context, code string) (*AuthorizationGrant, error)

	// Fulfill marks the grant as completed by the given session and user.
	// Returns ErrGrantFulfilled when it already was.
	Fulfill(ctx context.Context, id int64, sessionID, userID int64, at time.Time) error

	// Exchange marks the grant's code as redeemed. Returns ErrCodeExchanged
	// when it was redeemed before, ErrGrantNotFulfilled when consent never
	// completed.
	Exchange(ctx context.Context, code string, at time.Time) (*AuthorizationGrant, error)

	// DeleteExpiredBefore removes unfulfilled grants created before cutoff
	// and returns how many were dropped.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
