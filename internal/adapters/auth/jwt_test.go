package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, svc.ttl)

	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	sub, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, _ := NewJWTService("secret", time.Minute)
	other, _ := NewJWTService("other", time.Minute)

	foreign, _ := other.Issue("user-1")
	_, err := svc.Verify(foreign)
	assert.True(t, errors.Is(err, entities.ErrAuth))

	_, err = svc.Verify("not-a-token")
	assert.True(t, errors.Is(err, entities.ErrAuth))

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	expired, _ := svc.Issue("user-1")
	svc.now = time.Now
	_, err = svc.Verify(expired)
	assert.True(t, errors.Is(err, entities.ErrAuth))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	s, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	_, err = svc.Verify(s)
	assert.True(t, errors.Is(err, entities.ErrAuth))

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	_, err = svc.Verify(noSub)
	assert.True(t, errors.Is(err, entities.ErrAuth))
}

func TestNewJWTService_EmptySecret(t *testing.T) {
	_, err := NewJWTService("", time.Minute)
	assert.True(t, errors.Is(err, entities.ErrConfig))
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.NoError(t, h.Compare(hash, "hunter22"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), entities.ErrAuth)
}
