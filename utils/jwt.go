package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, forged and expired session tokens.
var ErrInvalidToken = errors.New("invalid session token")

// TokenSigner wraps server-side session ids in HS256-signed tokens.
// The token only proves the id was issued here; the session record stays authoritative.
type TokenSigner struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTokenSigner returns a signer whose tokens expire maxAge after issue.
func NewTokenSigner(secret string, maxAge time.Duration) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// Sign issues a token carrying sessionID as its jti claim.
func (s *TokenSigner) Sign(sessionID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates a token and returns the session id it carries.
func (s *TokenSigner) Parse(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
