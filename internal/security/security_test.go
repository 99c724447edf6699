package security

import (
	"context"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"messenger/internal/domain"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hashed, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)

	assert.NoError(t, h.Verify("s3cret", hashed))
	assert.ErrorIs(t, h.Verify("wrong", hashed), ErrPasswordMismatch)
	assert.Error(t, h.Verify("s3cret", "not-a-hash"))

	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
}

type stubUsers struct {
	domain.UserRepository
	byID map[int64]*domain.User
}

func (s stubUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return s.byID[id], nil
}

func TestTokenService(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	t.Run("RoundTrip", func(t *testing.T) {
		tok, err := svc.CreateForUser(7, "alice")
		require.NoError(t, err)

		claims, err := svc.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, "7", claims.Subject)
		assert.Equal(t, int64(7), claims.UserID)
		assert.Equal(t, "alice", claims.Username)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("UniqueIDs", func(t *testing.T) {
		a, err := svc.CreateForUser(7, "alice")
		require.NoError(t, err)
		b, err := svc.CreateForUser(7, "alice")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Expired", func(t *testing.T) {
		tok, err := svc.CreateWithTTL(7, "alice", -time.Minute)
		require.NoError(t, err)
		_, err = svc.Parse(tok)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		tok, err := NewTokenService("other", time.Hour).CreateForUser(7, "alice")
		require.NoError(t, err)
		_, err = svc.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("InvalidSubject", func(t *testing.T) {
		for _, tc := range []struct {
			id       int64
			username string
		}{{0, "alice"}, {-1, "alice"}, {7, ""}} {
			tok, err := svc.CreateForUser(tc.id, tc.username)
			require.NoError(t, err)
			_, err = svc.Parse(tok)
			assert.ErrorIs(t, err, jwt.ErrTokenInvalidSubject, "id=%d username=%q", tc.id, tc.username)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	ctx := context.Background()
	alice := &domain.User{ID: 7, Username: "alice"}
	users := stubUsers{byID: map[int64]*domain.User{7: alice}}

	tok, err := svc.CreateForUser(7, "alice")
	require.NoError(t, err)
	u, err := svc.Authenticate(ctx, tok, users)
	require.NoError(t, err)
	assert.Same(t, alice, u)

	t.Run("DeletedUser", func(t *testing.T) {
		tok, err := svc.CreateForUser(8, "bob")
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, tok, users)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("IDNowOwnedByAnotherUsername", func(t *testing.T) {
		tok, err := svc.CreateForUser(7, "carol")
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, tok, users)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not-a-token", users)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestEncryptor(t *testing.T) {
	enc, err := NewEncryptor([]byte("any length secret"), nil)
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		sealed, err := enc.Encrypt("hello, Привет")
		require.NoError(t, err)
		assert.NotContains(t, sealed, "hello")

		plain, err := enc.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "hello, Привет", plain)
	})

	t.Run("FreshNonce", func(t *testing.T) {
		a, _ := enc.Encrypt("same")
		b, _ := enc.Encrypt("same")
		assert.NotEqual(t, a, b)
	})

	t.Run("RawFallback", func(t *testing.T) {
		_, err := enc.Decrypt("plain text from before encryption")
		assert.Error(t, err)
		assert.Equal(t, "plain text from before encryption", enc.DecryptOrRaw("plain text from before encryption"))
		assert.Equal(t, "", enc.DecryptOrRaw(""))
	})

	t.Run("OtherKeyFails", func(t *testing.T) {
		other, err := NewEncryptor([]byte("different"), nil)
		require.NoError(t, err)
		sealed, err := other.Encrypt("x")
		require.NoError(t, err)
		_, err = enc.Decrypt(sealed)
		assert.Error(t, err)
	})

	t.Run("LegacyFernet", func(t *testing.T) {
		var k fernet.Key
		require.NoError(t, k.Generate())
		legacy, err := fernet.EncryptAndSign([]byte("old message"), &k)
		require.NoError(t, err)

		withLegacy, err := NewEncryptor([]byte("new secret"), []string{k.Encode()})
		require.NoError(t, err)
		plain, err := withLegacy.Decrypt(string(legacy))
		require.NoError(t, err)
		assert.Equal(t, "old message", plain)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		_, err := NewEncryptor(nil, nil)
		assert.Error(t, err)
	})
}
