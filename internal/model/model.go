// Package model defines domain entities used by services and repositories.
package model

import (
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role tags assigned to identities.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is a registered account. The password is stored only as an encoded
// argon2id hash.
type Identity struct {
	ID        uuid.UUID // PK, internal; the only key used for session lookups
	Username  string    // unique
	Email     string    // unique, lower-cased
	PwdHash   string    // $argon2id$v=19$...
	Role      string
	SlugID    string // optional public-facing id
	CreatedAt time.Time
}

// Summary returns the client-safe projection of the identity.
func (i Identity) Summary() IdentitySummary {
	return IdentitySummary{ID: i.ID, Username: i.Username, Email: i.Email, Role: i.Role, SlugID: i.SlugID}
}

// IdentitySummary is what clients get to see about an identity.
type IdentitySummary struct {
	ID       uuid.UUID
	Username string
	Email    string
	Role     string
	SlugID   string
}

// Session is the durable state of one login. Only hashes of refresh tokens are kept.
type Session struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	TokenHash  string   // hash of the current refresh token
	UsedHashes []string // hashes of rotated-away refresh tokens, append-only
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// WasUsed reports whether hash belongs to a refresh token already rotated away.
func (s *Session) WasUsed(hash string) bool {
	return slices.Contains(s.UsedHashes, hash)
}

// Expired reports whether the session is past its absolute expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// RefreshToken is a freshly minted opaque refresh token. Plain is handed to the
// caller once and never stored.
type RefreshToken struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry
}

// LoginResult is returned by login and by code-flow registration.
type LoginResult struct {
	Tokens    Tokens
	SessionID uuid.UUID
	Identity  IdentitySummary
}

// RotateResult is returned by a successful refresh-token rotation.
type RotateResult struct {
	Tokens    Tokens
	SessionID uuid.UUID
}

// IssuedCode is returned by the one-time-code issuance.
type IssuedCode struct {
	Email string
	Code  string
}

// VerifyCodeInput carries a registration attempt through the code flow. Username and
// Password are optional; defaults are derived when empty.
type VerifyCodeInput struct {
	Email    string
	Code     string
	Username string
	Password string
}
