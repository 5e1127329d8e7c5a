package fakegrantrepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-ident-server/oauth2"
)

var _ oauth2.GrantRepo = (*FakeGrantRepo)(nil)

// FakeGrantRepo is an in-memory oauth2.GrantRepo for tests and local
// development.
type FakeGrantRepo struct {
	grants map[int64]*oauth2.AuthorizationGrant
	codes  map[string]int64
	nextID int64
	lock   sync.RWMutex
}

func NewFakeGrantRepo() *FakeGrantRepo {
	return &FakeGrantRepo{
		grants: make(map[int64]*oauth2.AuthorizationGrant),
		codes:  make(map[string]int64),
	}
}

func (gr *FakeGrantRepo) Create(_ context.Context, grant *oauth2.AuthorizationGrant) error {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	gr.nextID++
	grant.ID = gr.nextID

	copied := *grant
	gr.grants[grant.ID] = &copied
	gr.codes[grant.Code] = grant.ID
	return nil
}

func (gr *FakeGrantRepo) GetByID(_ context.Context, id int64) (*oauth2.AuthorizationGrant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()

	grant, ok := gr.grants[id]
	if !ok {
		return nil, oauth2.ErrGrantNotFound
	}
	copied := *grant
	return &copied, nil
}

func (gr *FakeGrantRepo) GetByCode(_ context.Context, code string) (*oauth2.AuthorizationGrant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()

	id, ok := gr.codes[code]
	if !ok {
		return nil, oauth2.ErrGrantNotFound
	}
	copied := *gr.grants[id]
	return &copied, nil
}

func (gr *FakeGrantRepo) Fulfill(_ context.Context, id int64, sessionID, userID int64, at time.Time) error {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	grant, ok := gr.grants[id]
	if !ok {
		return oauth2.ErrGrantNotFound
	}
	if grant.FulfilledAt != nil {
		return oauth2.ErrGrantFulfilled
	}

	grant.SessionID = sessionID
	grant.UserID = userID
	grant.FulfilledAt = &at
	return nil
}

func (gr *FakeGrantRepo) Exchange(_ context.Context, code string, at time.Time) (*oauth2.AuthorizationGrant, error) {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	id, ok := gr.codes[code]
	if !ok {
		return nil, oauth2.ErrGrantNotFound
	}
	grant := gr.grants[id]
	if grant.FulfilledAt == nil {
		return nil, oauth2.ErrGrantNotFulfilled
	}
	if grant.ExchangedAt != nil {
		return nil, oauth2.ErrCodeExchanged
	}

	grant.ExchangedAt = &at
	copied := *grant
	return &copied, nil
}

func (gr *FakeGrantRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	var dropped int64
	for id, grant := range gr.grants {
		if grant.FulfilledAt == nil && grant.CreatedAt.Before(cutoff) {
			delete(gr.codes, grant.Code)
			delete(gr.grants, id)
			dropped++
		}
	}
	return dropped, nil
}
