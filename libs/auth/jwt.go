package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims follows the access-token shape issued by Keycloak: roles live under
// realm_access.roles.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string      `json:"preferred_username,omitempty"`
	RealmAccess       RealmAccess `json:"realm_access"`
}

type RealmAccess struct {
	Roles []string `json:"roles"`
}

// HasAnyRole reports whether the token carries at least one of roles. An empty
// roles list always matches.
func (c *Claims) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if slices.Contains(c.RealmAccess.Roles, r) {
			return true
		}
	}
	return false
}

// Verifier checks bearer tokens against either a shared HS256 secret or the
// RS256 keys of a JWKS endpoint.
type Verifier struct {
	secret []byte
	jwks   *JWKSClient
	issuer string
}

func NewHS256Verifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func NewJWKSVerifier(jwks *JWKSClient, issuer string) *Verifier {
	return &Verifier{jwks: jwks, issuer: issuer}
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.jwks != nil {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if v.jwks == nil {
			return v.secret, nil
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid")
		}
		return v.jwks.Get(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// SignHS256 issues a token for local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
