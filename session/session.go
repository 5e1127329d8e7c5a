// Package session models browser sessions and the authentication events
// recorded against them, and defines the freshness policy privileged actions
// are gated on.
package session

import (
	"net/netip"
	"time"

	"github.com/jrsteele09/go-ident-server/users"
)

// State is the lifecycle state of a browser session, derived from
// FinishedAt. The only transition is Active to Finished, at logout, and it is
// never reversed.
type State string

const (
	StateActive   State = "active"
	StateFinished State = "finished"
)

// BrowserSession is one signed-in browser. LastActiveIP is the zero Addr and
// LastActiveAt nil until a qualifying request has been seen.
type BrowserSession struct {
	ID           int64
	User         users.User
	CreatedAt    time.Time
	FinishedAt   *time.Time
	UserAgent    string
	LastActiveIP netip.Addr
	LastActiveAt *time.Time
}

// State derives the lifecycle state from FinishedAt.
func (s BrowserSession) State() State {
	if s.FinishedAt != nil {
		return StateFinished
	}
	return StateActive
}

// Active reports whether the session can still be used.
func (s BrowserSession) Active() bool { return s.State() == StateActive }

// Authentication records one successful credential entry against a session.
// It is never mutated after creation; freshness checks consult the most
// recent one.
type Authentication struct {
	ID        int64
	SessionID int64
	CreatedAt time.Time
}
