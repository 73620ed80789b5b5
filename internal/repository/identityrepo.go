// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"strings"

	"github.com/and161185/authkeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// IdentityRepository provides access to registered identities.
type IdentityRepository interface {
	// Create inserts a new identity; a taken username or email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, id *model.Identity) error
	// GetByID loads an identity by internal ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error)
	// GetByLogin loads an identity by email when login contains '@' (case-insensitive),
	// by username otherwise (exact).
	GetByLogin(ctx context.Context, login string) (*model.Identity, error)
	// GetBySlug loads an identity by its public slug id.
	GetBySlug(ctx context.Context, slug string) (*model.Identity, error)
	// EmailExists reports whether an identity with this email is registered.
	EmailExists(ctx context.Context, email string) (bool, error)
}

// IsEmailLogin reports whether a login identifier names an email. Usernames never
// contain '@'.
func IsEmailLogin(login string) bool { return strings.Contains(login, "@") }
