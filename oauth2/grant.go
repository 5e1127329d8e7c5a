package oauth2

import "time"

// AuthorizationGrant is the pending record created when a client hits
// /authorize. Interactive steps reference it by ID through the continuation
// query; once the owning user has a session and has consented, the grant is
// fulfilled and its code redeemed exactly once at the token endpoint.
type AuthorizationGrant struct {
	ID          int64
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	Nonce       string

	// ResponseMode controls how the code is returned once the grant is
	// fulfilled. Empty means query.
	ResponseMode ResponseModeType

	// PKCE parameters, carried opaquely from the authorization request.
	CodeChallenge       string
	CodeChallengeMethod string

	// Code is the authorization code, generated at creation and released
	// to the client on fulfilment.
	Code string

	// SessionID and UserID are recorded at fulfilment time.
	SessionID int64
	UserID    int64

	CreatedAt   time.Time
	FulfilledAt *time.Time
	ExchangedAt *time.Time
}

// NewAuthorizationGrant builds a pending grant from a validated request.
// The ID is assigned by the repository on Create.
func NewAuthorizationGrant(req AuthorizationRequest, code string, now time.Time) *AuthorizationGrant {
	return &AuthorizationGrant{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		Nonce:               req.Nonce,
		ResponseMode:        req.ResponseMode,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Code:                code,
		CreatedAt:           now,
	}
}

// Fulfilled reports whether consent has completed and the code was released.
func (g *AuthorizationGrant) Fulfilled() bool { return g.FulfilledAt != nil }

// Exchanged reports whether the code has been redeemed at the token endpoint.
func (g *AuthorizationGrant) Exchanged() bool { return g.ExchangedAt != nil }

// Expired reports whether an unfulfilled grant has outlived ttl at time now.
// Fulfilled grants are kept until their code is redeemed or pruned.
func (g *AuthorizationGrant) Expired(now time.Time, ttl time.Duration) bool {
	return !g.Fulfilled() && now.Sub(g.CreatedAt) > ttl
}
