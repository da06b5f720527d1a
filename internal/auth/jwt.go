// Package auth provides JWT token management for member sessions.
// Access tokens (2h TTL) authorize API calls and the notification
// socket, refresh tokens (30d TTL) obtain new token pairs.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token scopes.
const (
	ScopeAccess  = "bzf.access"
	ScopeRefresh = "bzf.refresh"
)

// Token lifetimes.
const (
	AccessTTL  = 2 * time.Hour
	RefreshTTL = 30 * 24 * time.Hour
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims extends the standard JWT claims with a scope and the member's
// role at issue time.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
	Role  string `json:"role,omitempty"`
}

// Identity is the caller recovered from a valid token.
type Identity struct {
	UserID int64
	Role   string
}

// TokenPair holds an access/refresh JWT pair returned on login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// JWTManager signs and validates JWT tokens using HS256.
type JWTManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTManager creates a manager with the given HMAC secret and issuer URL.
func NewJWTManager(secret, issuer string) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// GenerateSecret returns a random 32-byte hex string for use as a JWT secret.
func GenerateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateTokenPair generates an access/refresh token pair for the given user.
func (m *JWTManager) CreateTokenPair(userID int64, role string) (*TokenPair, error) {
	access, err := m.sign(userID, role, ScopeAccess, AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: sign access token: %w", err)
	}
	refresh, err := m.sign(userID, role, ScopeRefresh, RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(AccessTTL / time.Second),
	}, nil
}

func (m *JWTManager) sign(userID int64, role, scope string, ttl time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
		Role:  role,
	})
	return token.SignedString(m.secret)
}

// ValidateAccessToken parses and validates a JWT access token. Returns
// ErrInvalidToken if the token is invalid, expired, or has the wrong scope.
func (m *JWTManager) ValidateAccessToken(tokenStr string) (*Identity, error) {
	return m.validate(tokenStr, ScopeAccess)
}

// ValidateRefreshToken parses and validates a JWT refresh token.
func (m *JWTManager) ValidateRefreshToken(tokenStr string) (*Identity, error) {
	return m.validate(tokenStr, ScopeRefresh)
}

func (m *JWTManager) validate(tokenStr, expectedScope string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	if claims.Scope != expectedScope {
		return nil, fmt.Errorf("%w: wrong scope: got %q, want %q", ErrInvalidToken, claims.Scope, expectedScope)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}

	return &Identity{UserID: id, Role: claims.Role}, nil
}
