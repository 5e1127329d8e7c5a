// Package token mints the opaque tokens handed out by the OAuth 2.0 token
// endpoint and the compatibility login API. Tokens carry no embedded claims;
// each one is a random string whose metadata lives server side and is looked
// up on every introspection.
package token

import "time"

// Kind distinguishes the three families of stored tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindCompat  Kind = "compat"
)

// StoredToken represents the server-side storage of token metadata.
// The client only receives the Token field (a random string). All other
// fields are server-side metadata used for introspection, refresh and
// revocation.
type StoredToken struct {
	Token     string
	Kind      Kind
	UserID    int64
	ClientID  string // empty for compat tokens
	SessionID int64  // browser session the token was minted through
	GrantID   int64  // authorization grant, zero for compat tokens
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Expired reports whether the token's lifetime has elapsed at now.
func (t *StoredToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Revoked reports whether the token has been explicitly revoked.
func (t *StoredToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Valid reports whether the token is still usable at now.
func (t *StoredToken) Valid(now time.Time) bool {
	return !t.Expired(now) && !t.Revoked()
}
