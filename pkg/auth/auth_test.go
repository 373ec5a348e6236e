package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fastConfig keeps bcrypt cheap so the suite stays quick.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func TestCreateUser(t *testing.T) {
	t.Run("creates and strips the hash", func(t *testing.T) {
		a := NewAuthenticator(fastConfig())
		user, err := a.CreateUser("odin", "ravenspass")
		require.NoError(t, err)
		assert.Equal(t, "odin", user.Username)
		assert.Empty(t, user.PasswordHash)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, 1, a.UserCount())
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		a := NewAuthenticator(fastConfig())
		_, err := a.CreateUser("odin", "ravenspass")
		require.NoError(t, err)
		_, err = a.CreateUser("odin", "otherpassword")
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("enforces the password policy", func(t *testing.T) {
		a := NewAuthenticator(fastConfig())
		_, err := a.CreateUser("odin", "short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})
}

func TestAuthenticate(t *testing.T) {
	a := NewAuthenticator(fastConfig())
	_, err := a.CreateUser("odin", "ravenspass")
	require.NoError(t, err)

	t.Run("issues a session", func(t *testing.T) {
		session, err := a.Authenticate("odin", "ravenspass")
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, "odin", session.Username)
		assert.True(t, session.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := a.Authenticate("odin", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user gets the same error", func(t *testing.T) {
		_, err := a.Authenticate("loki", "ravenspass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestValidateToken(t *testing.T) {
	t.Run("valid token resolves", func(t *testing.T) {
		a := NewAuthenticator(fastConfig())
		_, err := a.CreateUser("odin", "ravenspass")
		require.NoError(t, err)
		session, err := a.Authenticate("odin", "ravenspass")
		require.NoError(t, err)

		username, err := a.ValidateToken(session.Token)
		require.NoError(t, err)
		assert.Equal(t, "odin", username)
	})

	t.Run("unknown token", func(t *testing.T) {
		a := NewAuthenticator(fastConfig())
		_, err := a.ValidateToken("bogus")
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("expired token is purged", func(t *testing.T) {
		cfg := fastConfig()
		cfg.SessionTTL = time.Nanosecond
		a := NewAuthenticator(cfg)
		_, err := a.CreateUser("odin", "ravenspass")
		require.NoError(t, err)
		session, err := a.Authenticate("odin", "ravenspass")
		require.NoError(t, err)

		time.Sleep(time.Millisecond)
		_, err = a.ValidateToken(session.Token)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("revoked token stops working", func(t *testing.T) {
		a := NewAuthenticator(fastConfig())
		_, err := a.CreateUser("odin", "ravenspass")
		require.NoError(t, err)
		session, err := a.Authenticate("odin", "ravenspass")
		require.NoError(t, err)

		a.Revoke(session.Token)
		_, err = a.ValidateToken(session.Token)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})
}

func TestChangePassword(t *testing.T) {
	a := NewAuthenticator(fastConfig())
	_, err := a.CreateUser("odin", "ravenspass")
	require.NoError(t, err)
	session, err := a.Authenticate("odin", "ravenspass")
	require.NoError(t, err)

	require.NoError(t, a.ChangePassword("odin", "ravenspass", "newravenspass"))

	t.Run("old sessions revoked", func(t *testing.T) {
		_, err := a.ValidateToken(session.Token)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("old password rejected", func(t *testing.T) {
		_, err := a.Authenticate("odin", "ravenspass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("new password works", func(t *testing.T) {
		_, err := a.Authenticate("odin", "newravenspass")
		assert.NoError(t, err)
	})

	t.Run("wrong old password", func(t *testing.T) {
		err := a.ChangePassword("odin", "ravenspass", "anothernewpass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("abc", "abc"))
	assert.False(t, SecureCompare("abc", "abd"))
	assert.False(t, SecureCompare("abc", "abcd"))
}
