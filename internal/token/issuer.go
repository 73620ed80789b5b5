// Package token mints and verifies bearer tokens and mints opaque refresh tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/authkeeper/internal/crypto"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// MinKeyLen is the minimum HS256 signing key length accepted at startup.
const MinKeyLen = 32

// Validation leeway applied to exp/nbf/iat on verification.
const leeway = 30 * time.Second

// ErrKeyTooShort is returned by NewIssuer for a missing or short signing key.
var ErrKeyTooShort = fmt.Errorf("signing key must be at least %d bytes", MinKeyLen)

// Options configures an Issuer.
type Options struct {
	SignKey      []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	RefreshBytes int    // entropy of opaque refresh tokens
	HashKey      []byte // optional HMAC pepper for refresh-token hashes
	Issuer       string
}

// Claims are the verified contents of a bearer token.
type Claims struct {
	IdentityID uuid.UUID
	TokenID    string
	ExpiresAt  time.Time
}

// Issuer mints HS256 bearer tokens and opaque refresh tokens.
type Issuer struct {
	opts Options
	now  func() time.Time
}

// NewIssuer validates options and returns an Issuer. A bad key is a startup error.
func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.SignKey) < MinKeyLen {
		return nil, ErrKeyTooShort
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if opts.RefreshBytes < 16 {
		opts.RefreshBytes = 32
	}
	if opts.Issuer == "" {
		opts.Issuer = "authkeeper"
	}
	return &Issuer{opts: opts, now: time.Now}, nil
}

// Issue returns a new bearer token for identityID plus a new refresh token and its hash.
func (i *Issuer) Issue(identityID uuid.UUID) (model.Tokens, model.RefreshToken, error) {
	now := i.now()
	access, exp, err := i.issueAccessToken(identityID, now)
	if err != nil {
		return model.Tokens{}, model.RefreshToken{}, err
	}
	rt, err := i.NewRefreshToken(now)
	if err != nil {
		return model.Tokens{}, model.RefreshToken{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: rt.Plain, ExpiresAt: exp}, rt, nil
}

// NewRefreshToken mints an opaque refresh token expiring RefreshTTL after now.
func (i *Issuer) NewRefreshToken(now time.Time) (model.RefreshToken, error) {
	plain, err := pkgcrypto.RandToken(i.opts.RefreshBytes)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("refresh token: %w", err)
	}
	return model.RefreshToken{
		Plain:     plain,
		Hash:      i.HashRefresh(plain),
		ExpiresAt: now.Add(i.opts.RefreshTTL),
	}, nil
}

// HashRefresh returns the stored form of a refresh token.
func (i *Issuer) HashRefresh(plain string) string {
	return pkgcrypto.HashToken(plain, i.opts.HashKey)
}

// RefreshTTL returns the configured refresh-token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.opts.RefreshTTL }

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (i *Issuer) issueAccessToken(identityID uuid.UUID, now time.Time) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(i.opts.AccessTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    i.opts.Issuer,
		Subject:   identityID.String(),
		ID:        jti.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.opts.SignKey)
	return signed, exp, err
}

// Verify checks signature, issuer and time claims of a bearer token.
func (i *Issuer) Verify(bearer string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(bearer, &rc, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.opts.Issuer),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, err
	}
	id, err := uuid.FromString(rc.Subject)
	if err != nil {
		return Claims{}, errors.New("bad subject")
	}
	return Claims{IdentityID: id, TokenID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}

// ExpiresAt decodes the exp claim of a bearer token signed by this issuer. Time
// claims are not validated, so an already expired token still yields its expiry.
func (i *Issuer) ExpiresAt(bearer string) (time.Time, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(bearer, &rc, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return time.Time{}, err
	}
	if rc.ExpiresAt == nil {
		return time.Time{}, errors.New("no exp claim")
	}
	return rc.ExpiresAt.Time, nil
}

func (i *Issuer) keyFunc(*jwt.Token) (any, error) { return i.opts.SignKey, nil }
