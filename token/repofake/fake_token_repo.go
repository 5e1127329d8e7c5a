package tokenfakerepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-ident-server/token"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo is an in-memory token.Repo for tests.
type FakeTokenRepo struct {
	tokens map[string]*token.StoredToken
	lock   sync.RWMutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		tokens: make(map[string]*token.StoredToken),
	}
}

func (tr *FakeTokenRepo) Upsert(_ context.Context, t *token.StoredToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	stored := *t
	tr.tokens[stored.Token] = &stored
	return nil
}

func (tr *FakeTokenRepo) Get(_ context.Context, tokenStr string) (*token.StoredToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	stored, ok := tr.tokens[tokenStr]
	if !ok {
		return nil, token.ErrTokenNotFound
	}
	cp := *stored
	return &cp, nil
}

func (tr *FakeTokenRepo) Revoke(_ context.Context, tokenStr string, at time.Time) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	stored, ok := tr.tokens[tokenStr]
	if !ok {
		return token.ErrTokenNotFound
	}
	if stored.RevokedAt == nil {
		stored.RevokedAt = &at
	}
	return nil
}

func (tr *FakeTokenRepo) RevokeForSession(_ context.Context, sessionID int64, at time.Time) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for _, stored := range tr.tokens {
		if stored.SessionID == sessionID && stored.RevokedAt == nil {
			revokedAt := at
			stored.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (tr *FakeTokenRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var deleted int64
	for key, stored := range tr.tokens {
		if stored.ExpiresAt.Before(cutoff) {
			delete(tr.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
