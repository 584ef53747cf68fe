// Package utils holds the token helpers shared by the HTTP layer and the
// dev tooling.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// Roles carried in the "role" claim.
const (
	RoleDelegate  = "DELEGATE"
	RoleOrganizer = "ORGANIZER"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims is the identity the provider puts in an access token: the
// delegate id as subject, the entity the delegate belongs to, a display
// name and a role.
type Claims struct {
	Entity string `json:"entity,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Delegate converts the claims into the requester identity.
func (c Claims) Delegate() model.Delegate {
	return model.Delegate{ID: c.Subject, EntityID: c.Entity, DisplayName: c.Name}
}

// NewAccessToken builds and signs an HS256 JWT for a delegate.
func NewAccessToken(secret string, d model.Delegate, role string, ttl time.Duration) (AccessToken, error) {
	if d.ID == "" {
		return AccessToken{}, errors.New("subject is required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Entity: d.EntityID,
		Name:   d.DisplayName,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   d.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 token and returns its claims.  Tokens
// without a subject or an expiry are rejected.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
