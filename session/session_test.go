package session_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-ident-server/internal/utils"
	"github.com/jrsteele09/go-ident-server/session"
	"github.com/stretchr/testify/require"
)

func TestBrowserSessionState(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no finished timestamp means active", func(t *testing.T) {
		s := session.BrowserSession{ID: 1, CreatedAt: created}
		require.Equal(t, session.StateActive, s.State())
		require.True(t, s.Active())
	})

	t.Run("finished timestamp means finished", func(t *testing.T) {
		s := session.BrowserSession{
			ID:         1,
			CreatedAt:  created,
			FinishedAt: utils.Ptr(created.Add(time.Hour)),
		}
		require.Equal(t, session.StateFinished, s.State())
		require.False(t, s.Active())
	})

	t.Run("finishing at creation time still counts", func(t *testing.T) {
		s := session.BrowserSession{ID: 1, CreatedAt: created, FinishedAt: &created}
		require.Equal(t, session.StateFinished, s.State())
	})
}

func TestFreshEnough(t *testing.T) {
	authAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	auth := &session.Authentication{ID: 1, SessionID: 1, CreatedAt: authAt}
	maxAge := 5 * time.Minute

	t.Run("never fresh without an authentication", func(t *testing.T) {
		require.False(t, session.FreshEnough(nil, maxAge, authAt))
		require.False(t, session.FreshEnough(nil, 100*time.Hour, authAt))
	})

	t.Run("fresh at the moment of authentication", func(t *testing.T) {
		require.True(t, session.FreshEnough(auth, maxAge, authAt))
	})

	t.Run("fresh just inside the window", func(t *testing.T) {
		require.True(t, session.FreshEnough(auth, maxAge, authAt.Add(maxAge-time.Second)))
	})

	t.Run("fresh exactly at the window edge", func(t *testing.T) {
		require.True(t, session.FreshEnough(auth, maxAge, authAt.Add(maxAge)))
	})

	t.Run("stale just past the window", func(t *testing.T) {
		require.False(t, session.FreshEnough(auth, maxAge, authAt.Add(maxAge+time.Second)))
	})
}

func TestPolicy(t *testing.T) {
	authAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	auth := &session.Authentication{ID: 1, SessionID: 1, CreatedAt: authAt}
	policy := session.DefaultPolicy()

	t.Run("password change window is tighter than consent", func(t *testing.T) {
		require.Less(t, policy.PasswordChangeMaxAge, policy.ConsentMaxAge)
	})

	t.Run("stale for password change but fresh for consent", func(t *testing.T) {
		now := authAt.Add(30 * time.Minute)
		require.False(t, policy.FreshForPasswordChange(auth, now))
		require.True(t, policy.FreshForConsent(auth, now))
	})

	t.Run("no authentication is stale for every action", func(t *testing.T) {
		require.False(t, policy.FreshForPasswordChange(nil, authAt))
		require.False(t, policy.FreshForConsent(nil, authAt))
	})
}
