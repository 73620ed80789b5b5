package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/and161185/authkeeper/internal/cache"
	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

const blacklistPrefix = "blacklist:"

// BlacklistKey is the cache key marking bearer as logged out.
func BlacklistKey(bearer string) string {
	sum := sha256.Sum256([]byte(bearer))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

// Authenticator is the resource-server side bearer check.
type Authenticator struct {
	issuer TokenIssuer
	cache  *cache.Cache
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(issuer TokenIssuer, c *cache.Cache) *Authenticator {
	return &Authenticator{issuer: issuer, cache: c}
}

// Authenticate verifies bearer and rejects tokens blacklisted by a logout. A cache
// outage reads as "not blacklisted".
func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (token.Claims, error) {
	claims, err := a.issuer.Verify(bearer)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return token.Claims{}, errs.New(errs.KindTokenExpired, "bearer token expired")
	}
	if err != nil {
		return token.Claims{}, errs.ErrInvalidToken
	}
	if a.Blacklisted(ctx, bearer) {
		return token.Claims{}, errs.New(errs.KindInvalidToken, "token revoked")
	}
	return claims, nil
}

// Blacklisted reports whether a logout entry exists for bearer.
func (a *Authenticator) Blacklisted(ctx context.Context, bearer string) bool {
	var v bool
	return a.cache.Get(ctx, BlacklistKey(bearer), &v) && v
}
