package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenPairRoundTrip(t *testing.T) {
	m := NewJWTManager(GenerateSecret(), "https://bravozulu.film")

	pair, err := m.CreateTokenPair(42, "admin")
	require.NoError(t, err)
	assert.EqualValues(t, 7200, pair.ExpiresIn)

	id, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: 42, Role: "admin"}, id)

	id, err = m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id.UserID)
}

func TestScopesAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager(GenerateSecret(), "")
	pair, err := m.CreateTokenPair(7, "member")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredAccessToken(t *testing.T) {
	m := NewJWTManager(GenerateSecret(), "")
	issued := time.Now().Add(-3 * time.Hour)
	m.now = func() time.Time { return issued }

	pair, err := m.CreateTokenPair(1, "member")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRejectsForeignSecretAndIssuer(t *testing.T) {
	a := NewJWTManager(GenerateSecret(), "https://a.example")
	b := NewJWTManager(GenerateSecret(), "https://a.example")
	pair, err := a.CreateTokenPair(1, "member")
	require.NoError(t, err)

	_, err = b.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	c := &JWTManager{secret: a.secret, issuer: "https://c.example", now: time.Now}
	_, err = c.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRejectsNoneAlgorithmAndBadSubject(t *testing.T) {
	m := NewJWTManager(GenerateSecret(), "")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Scope: ScopeAccess})
	s, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: ScopeAccess,
	})
	s, err = bad.SignedString(m.secret)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
