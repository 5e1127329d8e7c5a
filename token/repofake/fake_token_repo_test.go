package tokenfakerepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-ident-server/token"
	tokenfakerepo "github.com/jrsteele09/go-ident-server/token/repofake"
	"github.com/stretchr/testify/require"
)

func storedToken(tokenStr string, sessionID int64, expiresAt time.Time) *token.StoredToken {
	return &token.StoredToken{
		Token:     tokenStr,
		Kind:      token.KindAccess,
		UserID:    1,
		SessionID: sessionID,
		IssuedAt:  expiresAt.Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
}

func TestFakeTokenRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get returns a copy of the stored metadata", func(t *testing.T) {
		repo := tokenfakerepo.NewFakeTokenRepo()
		require.NoError(t, repo.Upsert(ctx, storedToken("tok", 1, now.Add(time.Hour))))

		got, err := repo.Get(ctx, "tok")
		require.NoError(t, err)
		got.Scope = "mutated"

		again, err := repo.Get(ctx, "tok")
		require.NoError(t, err)
		require.Empty(t, again.Scope)
	})

	t.Run("get unknown token", func(t *testing.T) {
		repo := tokenfakerepo.NewFakeTokenRepo()

		_, err := repo.Get(ctx, "nope")
		require.ErrorIs(t, err, token.ErrTokenNotFound)
	})

	t.Run("revoke keeps the first timestamp", func(t *testing.T) {
		repo := tokenfakerepo.NewFakeTokenRepo()
		require.NoError(t, repo.Upsert(ctx, storedToken("tok", 1, now.Add(time.Hour))))

		require.NoError(t, repo.Revoke(ctx, "tok", now))
		require.NoError(t, repo.Revoke(ctx, "tok", now.Add(time.Minute)))

		got, err := repo.Get(ctx, "tok")
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		require.Equal(t, now, *got.RevokedAt)
	})

	t.Run("revoke unknown token", func(t *testing.T) {
		repo := tokenfakerepo.NewFakeTokenRepo()

		err := repo.Revoke(ctx, "nope", now)
		require.ErrorIs(t, err, token.ErrTokenNotFound)
	})

	t.Run("revoke for session spares other sessions", func(t *testing.T) {
		repo := tokenfakerepo.NewFakeTokenRepo()
		require.NoError(t, repo.Upsert(ctx, storedToken("mine", 1, now.Add(time.Hour))))
		require.NoError(t, repo.Upsert(ctx, storedToken("other", 2, now.Add(time.Hour))))

		require.NoError(t, repo.RevokeForSession(ctx, 1, now))

		mine, err := repo.Get(ctx, "mine")
		require.NoError(t, err)
		require.True(t, mine.Revoked())

		other, err := repo.Get(ctx, "other")
		require.NoError(t, err)
		require.False(t, other.Revoked())
	})

	t.Run("delete expired before cutoff", func(t *testing.T) {
		repo := tokenfakerepo.NewFakeTokenRepo()
		require.NoError(t, repo.Upsert(ctx, storedToken("old", 1, now.Add(-time.Hour))))
		require.NoError(t, repo.Upsert(ctx, storedToken("live", 1, now.Add(time.Hour))))

		deleted, err := repo.DeleteExpiredBefore(ctx, now)
		require.NoError(t, err)
		require.Equal(t, int64(1), deleted)

		_, err = repo.Get(ctx, "old")
		require.ErrorIs(t, err, token.ErrTokenNotFound)

		_, err = repo.Get(ctx, "live")
		require.NoError(t, err)
	})
}
