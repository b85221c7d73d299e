// Package auth issues and verifies access tokens and decides whether an
// authenticated identity may perform an operation.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "gophauth"

// Claims are the JWT claims of an access token: the registered set plus the
// caller's id, email and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64       `json:"uid"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: c.UserID, Email: c.Email, Role: c.Role}
}

// Codec signs and verifies HS256 access tokens. It keeps no state besides
// its configuration, so access tokens cannot be revoked before they expire.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, ttl time.Duration, opts ...CodecOption) *Codec {
	c := &Codec{secret: secret, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Issue signs a token for id valid from now for the codec TTL and returns
// it with its expiry.
func (c *Codec) Issue(id models.Identity) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(id.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: id.ID,
		Email:  id.Email,
		Role:   id.Role,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Expired tokens yield common.ErrTokenExpired; every other failure yields
// common.ErrInvalidToken. Both match errors.Is(err, common.ErrInvalidToken).
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID <= 0 {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
