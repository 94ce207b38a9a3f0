// Package auth provides identity hashing, session tokens, the Google OAuth
// client, and the session middleware.
//
// SESSION FLOW:
//  1. /auth/google redirects to Google.
//  2. The callback exchanges the code for the Google subject id and hashes it
//     (HashIdentity).
//  3. Known hash → a session token for that user is set in the "token"
//     cookie.
//  4. Unknown hash → a short-lived pending token carrying only the hash is
//     set in the "pending" cookie, and the client must POST
//     /registerUsername. A successful registration swaps it for a session
//     token.
//
// Both tokens are HS256 JWTs signed with the same secret. The "stg" claim
// tells them apart, so a pending token can never pass as a session.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "indie-arcade"

	// SessionTTL is how long a login lasts.
	SessionTTL = 24 * time.Hour
	// PendingTTL bounds the time between OAuth success and choosing a
	// username.
	PendingTTL = 10 * time.Minute

	stageSession = "session"
	stagePending = "pending"
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. Session tokens carry the user ID in "sub";
// pending tokens carry the identity hash in "idh" and no subject.
type claims struct {
	jwt.RegisteredClaims
	Stage        string `json:"stg"`
	IdentityHash string `json:"idh,omitempty"`
}

// Generate issues a session token for userID, valid for SessionTTL.
func (s *TokenService) Generate(userID int64) (string, error) {
	return s.GenerateWithDuration(userID, SessionTTL)
}

// GenerateWithDuration issues a session token with a custom lifetime.
// Used in tests (negative durations produce already-expired tokens).
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, error) {
	now := time.Now()
	return s.sign(claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Stage: stageSession,
	})
}

// GeneratePending issues a token proving the holder completed external
// authentication as identityHash but has not registered a username yet.
func (s *TokenService) GeneratePending(identityHash string) (string, error) {
	if identityHash == "" {
		return "", errors.New("auth: pending token needs an identity hash")
	}
	now := time.Now()
	return s.sign(claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(PendingTTL)),
			Issuer:    issuer,
		},
		Stage:        stagePending,
		IdentityHash: identityHash,
	})
}

func (s *TokenService) sign(c claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies a session token and returns the user ID it encodes.
// Pending tokens are rejected.
func (s *TokenService) Validate(tokenStr string) (int64, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return 0, err
	}
	if c.Stage != stageSession {
		return 0, errors.New("auth: not a session token")
	}
	if c.Subject == "" {
		return 0, errors.New("auth: token has no subject")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: invalid subject %q", c.Subject)
	}
	return userID, nil
}

// ValidatePending verifies a pending-registration token and returns the
// identity hash it carries.
func (s *TokenService) ValidatePending(tokenStr string) (string, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return "", err
	}
	if c.Stage != stagePending || c.IdentityHash == "" {
		return "", errors.New("auth: not a pending registration token")
	}
	return c.IdentityHash, nil
}

// parse checks signature, algorithm, issuer and expiry.
//
// jwt.WithValidMethods pins HS256 so a token claiming "none" or an
// asymmetric algorithm is refused before the key is ever used.
func (s *TokenService) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	return c, nil
}
