package session

import (
	"context"
	"net/netip"
	"time"
)

// Store opens units of work against session storage. Each request handler
// begins exactly one and terminates it before returning.
type Store interface {
	Begin(ctx context.Context) (Repo, error)
}

// Repo is a transactional view over sessions and their authentication
// events. Every exit path must reach exactly one of Commit or Cancel; Cancel
// after Commit is a no-op, so handlers can `defer repo.Cancel(ctx)` and
// Commit on the success path.
type Repo interface {
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id int64) (*BrowserSession, error)

	// ListForUser returns the user's sessions in creation order.
	ListForUser(ctx context.Context, userID int64) ([]*BrowserSession, error)

	// Create stores the session and assigns its ID.
	Create(ctx context.Context, s *BrowserSession) error

	// RecordAuthentication appends an authentication event to the session.
	RecordAuthentication(ctx context.Context, sessionID int64, at time.Time) (*Authentication, error)

	// LastAuthentication returns the session's most recent authentication
	// event, or (nil, nil) when the session exists but never recorded one.
	LastAuthentication(ctx context.Context, sessionID int64) (*Authentication, error)

	// Finish sets FinishedAt. Finishing an already-finished session keeps
	// the original timestamp.
	Finish(ctx context.Context, sessionID int64, at time.Time) error

	// Touch updates the last-seen IP and time.
	Touch(ctx context.Context, sessionID int64, ip netip.Addr, at time.Time) error

	// DeleteFinishedBefore removes sessions finished before cutoff and
	// returns how many were dropped.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Commit(ctx context.Context) error
	Cancel(ctx context.Context) error
}
