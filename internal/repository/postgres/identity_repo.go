package postgres

import (
	"context"
	"strings"

	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/and161185/authkeeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// IdentityRepo implements IdentityRepository using PostgreSQL.
type IdentityRepo struct{ db *DB }

// NewIdentityRepo constructs an identity repository.
func NewIdentityRepo(db *DB) *IdentityRepo { return &IdentityRepo{db: db} }

const identityCols = `id, username, email, pwd_hash, role, slug_id, created_at`

// Create inserts a new identity row.
func (r *IdentityRepo) Create(ctx context.Context, u *model.Identity) error {
	const q = `
INSERT INTO identities (id, username, email, pwd_hash, role, slug_id)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, strings.ToLower(u.Email), u.PwdHash, u.Role, u.SlugID)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects an identity by ID.
func (r *IdentityRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	const q = `SELECT ` + identityCols + ` FROM identities WHERE id=$1`
	return scanIdentity(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByLogin selects an identity by case-insensitive email or by exact username.
func (r *IdentityRepo) GetByLogin(ctx context.Context, login string) (*model.Identity, error) {
	const (
		byEmail    = `SELECT ` + identityCols + ` FROM identities WHERE email=lower($1)`
		byUsername = `SELECT ` + identityCols + ` FROM identities WHERE username=$1`
	)
	q := byUsername
	if repository.IsEmailLogin(login) {
		q = byEmail
	}
	return scanIdentity(r.db.Pool.QueryRow(ctx, q, login))
}

// GetBySlug selects an identity by public slug id.
func (r *IdentityRepo) GetBySlug(ctx context.Context, slug string) (*model.Identity, error) {
	if slug == "" {
		return nil, errs.ErrNotFound
	}
	const q = `SELECT ` + identityCols + ` FROM identities WHERE slug_id=$1`
	return scanIdentity(r.db.Pool.QueryRow(ctx, q, slug))
}

// EmailExists reports whether the email is registered.
func (r *IdentityRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM identities WHERE email=lower($1))`
	var ok bool
	err := r.db.Pool.QueryRow(ctx, q, email).Scan(&ok)
	return ok, err
}

func scanIdentity(row pgx.Row) (*model.Identity, error) {
	var u model.Identity
	var slug *string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PwdHash, &u.Role, &slug, &u.CreatedAt); err != nil {
		return nil, notFound(err, errs.ErrNotFound)
	}
	if slug != nil {
		u.SlugID = *slug
	}
	return &u, nil
}
