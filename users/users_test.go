package users_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-ident-server/internal/utils"
	"github.com/jrsteele09/go-ident-server/users"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	t.Run("valid usernames", func(t *testing.T) {
		require.NoError(t, users.ValidateUsername("alice"))
		require.NoError(t, users.ValidateUsername("bob-42"))
		require.NoError(t, users.ValidateUsername("a.b_c"))
	})

	t.Run("too short", func(t *testing.T) {
		require.Error(t, users.ValidateUsername("ab"))
	})

	t.Run("uppercase rejected", func(t *testing.T) {
		require.Error(t, users.ValidateUsername("Alice"))
	})

	t.Run("leading punctuation rejected", func(t *testing.T) {
		require.Error(t, users.ValidateUsername("-alice"))
	})

	t.Run("spaces rejected", func(t *testing.T) {
		require.Error(t, users.ValidateUsername("alice smith"))
	})
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Run("strong password", func(t *testing.T) {
		require.NoError(t, users.ValidatePasswordStrength("Str0ngPass"))
	})

	t.Run("too short", func(t *testing.T) {
		err := users.ValidatePasswordStrength("Ab1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "at least 8 characters")
	})

	t.Run("missing uppercase", func(t *testing.T) {
		err := users.ValidatePasswordStrength("weakpass1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "uppercase")
	})

	t.Run("missing number", func(t *testing.T) {
		err := users.ValidatePasswordStrength("WeakPassword")
		require.Error(t, err)
		require.Contains(t, err.Error(), "number")
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := users.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	require.NotEqual(t, "Sup3rSecret", hash)

	t.Run("correct password matches", func(t *testing.T) {
		require.True(t, users.CheckPasswordHash("Sup3rSecret", hash))
	})

	t.Run("wrong password does not match", func(t *testing.T) {
		require.False(t, users.CheckPasswordHash("WrongPass1", hash))
	})

	t.Run("user method checks against stored hash", func(t *testing.T) {
		u := &users.User{PasswordHash: hash}
		require.True(t, u.CheckPassword("Sup3rSecret"))
		require.False(t, u.CheckPassword("nope"))
	})
}

func TestVerificationUsable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh code is usable", func(t *testing.T) {
		v := users.Verification{CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		require.True(t, v.Usable(now))
	})

	t.Run("usable exactly at expiry", func(t *testing.T) {
		v := users.Verification{CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		require.True(t, v.Usable(now.Add(time.Hour)))
	})

	t.Run("expired code is not usable", func(t *testing.T) {
		v := users.Verification{CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		require.False(t, v.Usable(now.Add(time.Hour+time.Second)))
	})

	t.Run("used code is not usable", func(t *testing.T) {
		v := users.Verification{
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
			UsedAt:    utils.Ptr(now.Add(time.Minute)),
		}
		require.False(t, v.Usable(now.Add(2*time.Minute)))
	})
}

func TestNewVerificationCode(t *testing.T) {
	first := users.NewVerificationCode()
	second := users.NewVerificationCode()
	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)
}
