package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/internal/config"
	"github.com/jrsteele09/go-ident-server/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Issuer handles opaque token creation, rotation, introspection and
// revocation.
type Issuer struct {
	repo   Repo
	config config.OAuthConfig
}

// NewIssuer creates a new token issuer
func NewIssuer(repo Repo, cfg config.OAuthConfig) *Issuer {
	return &Issuer{
		repo:   repo,
		config: cfg,
	}
}

// IssueForGrant mints an access and refresh token pair for a grant whose
// authorization code has been exchanged.
func (i *Issuer) IssueForGrant(ctx context.Context, grant *oauth2.AuthorizationGrant) (access, refresh *StoredToken, err error) {
	if !grant.Fulfilled() {
		return nil, nil, oauth2.ErrGrantNotFulfilled
	}

	now := NowTimeFunc()
	access, err = i.store(ctx, StoredToken{
		Kind:      KindAccess,
		UserID:    grant.UserID,
		ClientID:  grant.ClientID,
		SessionID: grant.SessionID,
		GrantID:   grant.ID,
		Scope:     grant.Scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.config.GetAccessTokenExpiry()),
	})
	if err != nil {
		return nil, nil, err
	}

	refresh, err = i.store(ctx, StoredToken{
		Kind:      KindRefresh,
		UserID:    grant.UserID,
		ClientID:  grant.ClientID,
		SessionID: grant.SessionID,
		GrantID:   grant.ID,
		Scope:     grant.Scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.config.GetRefreshTokenExpiry()),
	})
	if err != nil {
		return nil, nil, err
	}

	return access, refresh, nil
}

// Refresh rotates a refresh token. The presented token is revoked and a new
// access and refresh pair is minted with the same subject, session and scope.
func (i *Issuer) Refresh(ctx context.Context, refreshToken, clientID string) (access, refresh *StoredToken, err error) {
	stored, err := i.repo.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, errors.Wrap(err, "[Issuer.Refresh] loading token")
	}

	if stored.Kind != KindRefresh || stored.ClientID != clientID {
		return nil, nil, ErrInvalidToken
	}
	if stored.Revoked() {
		return nil, nil, ErrTokenRevoked
	}

	now := NowTimeFunc()
	if stored.Expired(now) {
		return nil, nil, ErrTokenExpired
	}

	if err := i.repo.Revoke(ctx, stored.Token, now); err != nil {
		return nil, nil, errors.Wrap(err, "[Issuer.Refresh] revoking token")
	}

	access, err = i.store(ctx, StoredToken{
		Kind:      KindAccess,
		UserID:    stored.UserID,
		ClientID:  stored.ClientID,
		SessionID: stored.SessionID,
		GrantID:   stored.GrantID,
		Scope:     stored.Scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.config.GetAccessTokenExpiry()),
	})
	if err != nil {
		return nil, nil, err
	}

	refresh, err = i.store(ctx, StoredToken{
		Kind:      KindRefresh,
		UserID:    stored.UserID,
		ClientID:  stored.ClientID,
		SessionID: stored.SessionID,
		GrantID:   stored.GrantID,
		Scope:     stored.Scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.config.GetRefreshTokenExpiry()),
	})
	if err != nil {
		return nil, nil, err
	}

	return access, refresh, nil
}

// IssueCompat mints a long lived token for the compatibility login API. The
// token is bound to the browser session so finishing the session revokes it.
func (i *Issuer) IssueCompat(ctx context.Context, userID, sessionID int64) (*StoredToken, error) {
	now := NowTimeFunc()
	return i.store(ctx, StoredToken{
		Kind:      KindCompat,
		UserID:    userID,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.config.GetCompatTokenExpiry()),
	})
}

// Active returns the stored token when it is known, unexpired and unrevoked.
// A nil token with a nil error means the token is not active; only storage
// failures produce an error.
func (i *Issuer) Active(ctx context.Context, tokenStr string) (*StoredToken, error) {
	stored, err := i.repo.Get(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Issuer.Active] loading token")
	}
	if !stored.Valid(NowTimeFunc()) {
		return nil, nil
	}
	return stored, nil
}

// Revoke marks a token as revoked. Unknown tokens are ignored so the
// revocation endpoint can answer uniformly.
func (i *Issuer) Revoke(ctx context.Context, tokenStr string) error {
	err := i.repo.Revoke(ctx, tokenStr, NowTimeFunc())
	if errors.Is(err, ErrTokenNotFound) {
		return nil
	}
	return err
}

// RevokeForSession revokes every token minted through the given browser
// session. Called when the session is finished.
func (i *Issuer) RevokeForSession(ctx context.Context, sessionID int64) error {
	return i.repo.RevokeForSession(ctx, sessionID, NowTimeFunc())
}

func (i *Issuer) store(ctx context.Context, t StoredToken) (*StoredToken, error) {
	opaque, err := i.newOpaque()
	if err != nil {
		return nil, err
	}
	t.Token = opaque

	if err := i.repo.Upsert(ctx, &t); err != nil {
		return nil, errors.Wrap(err, "[Issuer.store] storing token")
	}
	return &t, nil
}

func (i *Issuer) newOpaque() (string, error) {
	tokenBytes := make([]byte, i.config.GetTokenLength()) // Configured length (default: 32 bytes = 256 bits)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Issuer.newOpaque] generating random bytes")
	}
	return hex.EncodeToString(tokenBytes), nil
}
