package repository

import (
	"context"
	"time"

	"github.com/and161185/authkeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SessionRepository persists session records. Every method is an atomic
// single-statement operation; lookups are keyed by the internal identity ID.
type SessionRepository interface {
	// Create inserts a new session record.
	Create(ctx context.Context, s *model.Session) error
	// FindByIdentityAndSession returns errs.ErrNotFound when absent.
	FindByIdentityAndSession(ctx context.Context, identityID, sessionID uuid.UUID) (*model.Session, error)
	// FindAllByIdentity returns every session of the identity, oldest first.
	FindAllByIdentity(ctx context.Context, identityID uuid.UUID) ([]model.Session, error)
	// DeleteAllByIdentity removes every session of the identity and returns how many.
	DeleteAllByIdentity(ctx context.Context, identityID uuid.UUID) (int64, error)
	// DeleteBySession removes one session; absence is not an error.
	DeleteBySession(ctx context.Context, identityID, sessionID uuid.UUID) error
	// Save overwrites the mutable fields of an existing record.
	Save(ctx context.Context, s *model.Session) error
	// Advance replaces the current hash with nextHash and appends prevHash to the used
	// set, but only while the stored current hash still equals prevHash. Otherwise it
	// returns errs.ErrVersionConflict.
	Advance(ctx context.Context, identityID, sessionID uuid.UUID, prevHash, nextHash string, expiresAt time.Time) error
}
