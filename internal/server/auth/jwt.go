// Package auth holds the credential primitives of the account core: bcrypt
// password hashing and HS256 session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/server/models"
)

// Claims is the session token payload. Subject carries the account ID.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// Signer issues and checks session tokens. It holds no mutable state after
// construction and is safe for concurrent use.
type Signer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSigner returns a Signer using key for HS256, tokens valid for ttl.
func NewSigner(key []byte, ttl time.Duration, issuer string) *Signer {
	return &Signer{key: key, ttl: ttl, issuer: issuer, now: time.Now}
}

// Sign returns a token whose subject is a.ID, issued now and expiring after
// the configured validity. Failures wrap common.ErrSigning.
func (s *Signer) Sign(a *models.Account) (string, error) {
	if len(s.key) == 0 {
		return "", fmt.Errorf("%w: no signing key configured", common.ErrSigning)
	}
	if a == nil || a.ID == "" {
		return "", fmt.Errorf("%w: account has no id", common.ErrSigning)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Username: a.Username,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrSigning, err)
	}
	return signed, nil
}

// Verify parses and validates token. Expired tokens yield
// common.ErrTokenExpired, anything else unacceptable common.ErrInvalidToken.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Subject verifies token and returns the account ID it was issued for.
func (s *Signer) Subject(token string) (string, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
