// Package session issues and verifies the signed assertion downstream
// services trust. Assertions are self-contained HS256 JWTs; any holder
// of the shared secret can verify them without calling back into the
// service, so no session state is stored anywhere.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the stock assertion lifetime.
const DefaultTTL = 24 * time.Hour

var ErrInvalidAssertion = errors.New("invalid assertion")

// Claims carries the registered claims plus the authenticated user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Issuer signs and verifies assertions with a pre-shared symmetric key.
// The secret is configured at deployment and never transmitted.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed assertion binding the user id to an
// issue/expiry window.
func (i *Issuer) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		UserID: userID,
	})

	return token.SignedString(i.secret)
}

// Verify validates an assertion and returns the bound user id.
func (i *Issuer) Verify(assertion string) (string, error) {
	return Verify(assertion, i.secret)
}

// Verify is the stateless check downstream services run with their own
// copy of the shared secret.
func Verify(assertion string, secret []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(assertion, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", ErrInvalidAssertion
	}

	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidAssertion
	}

	return claims.UserID, nil
}
