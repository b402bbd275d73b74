// Package auth provides JWT issuance/verification, password hashing, and the
// session-gate middleware.
//
// The session model is the classic dual-token scheme:
//
//   - Access token: short-lived, verified statelessly on every request.
//   - Refresh token: long-lived, single-use; it must also match the value
//     stored on the user record, which is the only server-side revocation
//     mechanism (logout clears it, rotation replaces it).
//
// The two token kinds are signed with distinct secrets so one can never be
// presented in place of the other.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/streamhub/internal/apperror"
)

const issuer = "streamhub"

// TokenService creates and verifies the access/refresh token pair.
// It holds the two HMAC secrets and the configured lifetimes; it has no
// persistent state of its own.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a TokenService. Both secrets should be at least
// 32 bytes of random data in production; 16 is the enforced floor.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(accessSecret) < 16 || len(refreshSecret) < 16 {
		return nil, errors.New("auth: token secrets must be at least 16 characters")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// claims is the JWT payload. Subject carries the internal user ID; username
// and email are informational (present on access tokens only) and never used
// for authorization decisions.
type claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived access token for userID.
func (s *TokenService) GenerateAccessToken(userID, username, email string) (string, error) {
	return s.generate(s.accessSecret, s.accessTTL, userID, username, email)
}

// GenerateRefreshToken signs a long-lived refresh token for userID.
// Callers must persist the returned token on the user record before handing
// it to a client; an issued-but-unpersisted refresh token can never be
// redeemed.
func (s *TokenService) GenerateRefreshToken(userID string) (string, error) {
	return s.generate(s.refreshSecret, s.refreshTTL, userID, "", "")
}

func (s *TokenService) generate(secret []byte, ttl time.Duration, userID, username, email string) (string, error) {
	now := time.Now()

	c := claims{
		Username: username,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// VerifyAccess parses and verifies an access token, returning the user ID
// from its Subject claim. Failures are apperror.ErrUnauthenticated.
func (s *TokenService) VerifyAccess(tokenStr string) (string, error) {
	return s.verify(tokenStr, s.accessSecret)
}

// VerifyRefresh is VerifyAccess for refresh tokens. Signature validity alone
// does not make a refresh token redeemable — the caller must still compare
// it against the value stored on the user record.
func (s *TokenService) VerifyRefresh(tokenStr string) (string, error) {
	return s.verify(tokenStr, s.refreshSecret)
}

func (s *TokenService) verify(tokenStr string, secret []byte) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperror.Unauthenticated("token expired")
		}
		return "", apperror.Unauthenticated("invalid token")
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", apperror.Unauthenticated("invalid token claims")
	}
	if c.Subject == "" {
		return "", apperror.Unauthenticated("token has no subject")
	}

	return c.Subject, nil
}
