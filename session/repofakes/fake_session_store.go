package fakesessionrepo

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-ident-server/session"
)

var (
	_ session.Store = (*FakeSessionStore)(nil)
	_ session.Repo  = (*fakeSessionRepo)(nil)
)

// FakeSessionStore is an in-memory session.Store for tests and local
// development. Units of work are serialized: Begin takes the store lock and
// snapshots the state, Commit keeps the mutations, Cancel restores the
// snapshot.
type FakeSessionStore struct {
	lock          sync.Mutex
	sessions      map[int64]*session.BrowserSession
	auths         map[int64][]*session.Authentication
	nextSessionID int64
	nextAuthID    int64
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		sessions: make(map[int64]*session.BrowserSession),
		auths:    make(map[int64][]*session.Authentication),
	}
}

func (st *FakeSessionStore) Begin(_ context.Context) (session.Repo, error) {
	st.lock.Lock()
	return &fakeSessionRepo{
		store:          st,
		backupSessions: copySessions(st.sessions),
		backupAuths:    copyAuths(st.auths),
		backupNextIDs:  [2]int64{st.nextSessionID, st.nextAuthID},
	}, nil
}

func copySessions(m map[int64]*session.BrowserSession) map[int64]*session.BrowserSession {
	out := make(map[int64]*session.BrowserSession, len(m))
	for id, s := range m {
		copied := *s
		out[id] = &copied
	}
	return out
}

func copyAuths(m map[int64][]*session.Authentication) map[int64][]*session.Authentication {
	out := make(map[int64][]*session.Authentication, len(m))
	for id, list := range m {
		out[id] = append([]*session.Authentication(nil), list...)
	}
	return out
}

type fakeSessionRepo struct {
	store          *FakeSessionStore
	backupSessions map[int64]*session.BrowserSession
	backupAuths    map[int64][]*session.Authentication
	backupNextIDs  [2]int64
	done           bool
}

func (r *fakeSessionRepo) Get(_ context.Context, id int64) (*session.BrowserSession, error) {
	s, ok := r.store.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) ListForUser(_ context.Context, userID int64) ([]*session.BrowserSession, error) {
	list := make([]*session.BrowserSession, 0)
	for _, s := range r.store.sessions {
		if s.User.ID != userID {
			continue
		}
		copied := *s
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *fakeSessionRepo) Create(_ context.Context, s *session.BrowserSession) error {
	r.store.nextSessionID++
	s.ID = r.store.nextSessionID

	copied := *s
	r.store.sessions[s.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) RecordAuthentication(_ context.Context, sessionID int64, at time.Time) (*session.Authentication, error) {
	if _, ok := r.store.sessions[sessionID]; !ok {
		return nil, session.ErrNotFound
	}

	r.store.nextAuthID++
	auth := &session.Authentication{ID: r.store.nextAuthID, SessionID: sessionID, CreatedAt: at}
	r.store.auths[sessionID] = append(r.store.auths[sessionID], auth)

	copied := *auth
	return &copied, nil
}

func (r *fakeSessionRepo) LastAuthentication(_ context.Context, sessionID int64) (*session.Authentication, error) {
	if _, ok := r.store.sessions[sessionID]; !ok {
		return nil, session.ErrNotFound
	}

	list := r.store.auths[sessionID]
	if len(list) == 0 {
		return nil, nil
	}

	latest := list[0]
	for _, a := range list[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeSessionRepo) Finish(_ context.Context, sessionID int64, at time.Time) error {
	s, ok := r.store.sessions[sessionID]
	if !ok {
		return session.ErrNotFound
	}
	if s.FinishedAt == nil {
		s.FinishedAt = &at
	}
	return nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, sessionID int64, ip netip.Addr, at time.Time) error {
	s, ok := r.store.sessions[sessionID]
	if !ok {
		return session.ErrNotFound
	}
	s.LastActiveIP = ip
	s.LastActiveAt = &at
	return nil
}

func (r *fakeSessionRepo) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var dropped int64
	for id, s := range r.store.sessions {
		if s.FinishedAt != nil && s.FinishedAt.Before(cutoff) {
			delete(r.store.sessions, id)
			delete(r.store.auths, id)
			dropped++
		}
	}
	return dropped, nil
}

func (r *fakeSessionRepo) Commit(_ context.Context) error {
	if r.done {
		return session.ErrDone
	}
	r.done = true
	r.store.lock.Unlock()
	return nil
}

func (r *fakeSessionRepo) Cancel(_ context.Context) error {
	if r.done {
		return nil
	}
	r.done = true

	r.store.sessions = r.backupSessions
	r.store.auths = r.backupAuths
	r.store.nextSessionID = r.backupNextIDs[0]
	r.store.nextAuthID = r.backupNextIDs[1]
	r.store.lock.Unlock()
	return nil
}
