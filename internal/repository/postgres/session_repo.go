package postgres

import (
	"context"
	"time"

	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionCols = `id, identity_id, token_hash, used_hashes, expires_at, created_at`

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (id, identity_id, token_hash, used_hashes, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	used := s.UsedHashes
	if used == nil {
		used = []string{}
	}
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.IdentityID, s.TokenHash, used, s.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// FindByIdentityAndSession selects one session of an identity.
func (r *SessionRepo) FindByIdentityAndSession(ctx context.Context, identityID, sessionID uuid.UUID) (*model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE identity_id=$1 AND id=$2`
	s, err := scanSession(r.db.Pool.QueryRow(ctx, q, identityID, sessionID))
	if err != nil {
		return nil, notFound(err, errs.ErrNotFound)
	}
	return s, nil
}

// FindAllByIdentity lists sessions of an identity, oldest first.
func (r *SessionRepo) FindAllByIdentity(ctx context.Context, identityID uuid.UUID) ([]model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE identity_id=$1 ORDER BY created_at, id`
	rows, err := r.db.Pool.Query(ctx, q, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// DeleteAllByIdentity removes every session of an identity.
func (r *SessionRepo) DeleteAllByIdentity(ctx context.Context, identityID uuid.UUID) (int64, error) {
	const q = `DELETE FROM sessions WHERE identity_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, identityID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteBySession removes one session (idempotent).
func (r *SessionRepo) DeleteBySession(ctx context.Context, identityID, sessionID uuid.UUID) error {
	const q = `DELETE FROM sessions WHERE identity_id=$1 AND id=$2`
	_, err := r.db.Pool.Exec(ctx, q, identityID, sessionID)
	return err
}

// Save overwrites token_hash, used_hashes and expires_at.
func (r *SessionRepo) Save(ctx context.Context, s *model.Session) error {
	const q = `
UPDATE sessions SET token_hash=$3, used_hashes=$4, expires_at=$5
WHERE identity_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, s.IdentityID, s.ID, s.TokenHash, s.UsedHashes, s.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Advance rotates the current hash only if it still equals prevHash.
func (r *SessionRepo) Advance(ctx context.Context, identityID, sessionID uuid.UUID, prevHash, nextHash string, expiresAt time.Time) error {
	const q = `
UPDATE sessions
SET token_hash=$4, used_hashes=array_append(used_hashes, $3), expires_at=$5
WHERE identity_id=$1 AND id=$2 AND token_hash=$3`
	tag, err := r.db.Pool.Exec(ctx, q, identityID, sessionID, prevHash, nextHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrVersionConflict
	}
	return nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.IdentityID, &s.TokenHash, &s.UsedHashes, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	if s.UsedHashes == nil {
		s.UsedHashes = []string{}
	}
	return &s, nil
}
