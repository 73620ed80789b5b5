// Package memory contains in-process implementations of the repository interfaces,
// used by tests and by the server's development mode.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/and161185/authkeeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

var (
	_ repository.IdentityRepository = (*Identities)(nil)
	_ repository.SessionRepository  = (*Sessions)(nil)
)

// Identities is a mutex-guarded identity store.
type Identities struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]model.Identity
}

// NewIdentities returns an empty store.
func NewIdentities() *Identities {
	return &Identities{byID: map[uuid.UUID]model.Identity{}}
}

func (r *Identities) Create(_ context.Context, id *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.ID == id.ID || u.Username == id.Username || strings.EqualFold(u.Email, id.Email) ||
			(id.SlugID != "" && u.SlugID == id.SlugID) {
			return errs.ErrAlreadyExists
		}
	}
	cpy := *id
	if cpy.CreatedAt.IsZero() {
		cpy.CreatedAt = time.Now()
	}
	r.byID[id.ID] = cpy
	return nil
}

func (r *Identities) GetByID(_ context.Context, id uuid.UUID) (*model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (r *Identities) GetByLogin(_ context.Context, login string) (*model.Identity, error) {
	if repository.IsEmailLogin(login) {
		return r.find(func(u model.Identity) bool { return strings.EqualFold(u.Email, login) })
	}
	return r.find(func(u model.Identity) bool { return u.Username == login })
}

func (r *Identities) GetBySlug(_ context.Context, slug string) (*model.Identity, error) {
	return r.find(func(u model.Identity) bool { return slug != "" && u.SlugID == slug })
}

func (r *Identities) EmailExists(_ context.Context, email string) (bool, error) {
	_, err := r.find(func(u model.Identity) bool { return strings.EqualFold(u.Email, email) })
	return err == nil, nil
}

func (r *Identities) find(match func(model.Identity) bool) (*model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}

type sessionKey struct{ identity, session uuid.UUID }

// Sessions is a mutex-guarded session store with atomic Advance.
type Sessions struct {
	mu   sync.Mutex
	rows map[sessionKey]model.Session
}

// NewSessions returns an empty store.
func NewSessions() *Sessions {
	return &Sessions{rows: map[sessionKey]model.Session{}}
}

func clone(s model.Session) model.Session {
	s.UsedHashes = slices.Clone(s.UsedHashes)
	return s
}

func (r *Sessions) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := sessionKey{s.IdentityID, s.ID}
	if _, ok := r.rows[k]; ok {
		return errs.ErrAlreadyExists
	}
	cpy := clone(*s)
	if cpy.CreatedAt.IsZero() {
		cpy.CreatedAt = time.Now()
	}
	r.rows[k] = cpy
	return nil
}

func (r *Sessions) FindByIdentityAndSession(_ context.Context, identityID, sessionID uuid.UUID) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[sessionKey{identityID, sessionID}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := clone(s)
	return &cpy, nil
}

func (r *Sessions) FindAllByIdentity(_ context.Context, identityID uuid.UUID) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Session{}
	for k, s := range r.rows {
		if k.identity == identityID {
			out = append(out, clone(s))
		}
	}
	slices.SortFunc(out, func(a, b model.Session) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *Sessions) DeleteAllByIdentity(_ context.Context, identityID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.rows {
		if k.identity == identityID {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *Sessions) DeleteBySession(_ context.Context, identityID, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, sessionKey{identityID, sessionID})
	return nil
}

func (r *Sessions) Save(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := sessionKey{s.IdentityID, s.ID}
	cur, ok := r.rows[k]
	if !ok {
		return errs.ErrNotFound
	}
	cur.TokenHash = s.TokenHash
	cur.UsedHashes = slices.Clone(s.UsedHashes)
	cur.ExpiresAt = s.ExpiresAt
	r.rows[k] = cur
	return nil
}

func (r *Sessions) Advance(_ context.Context, identityID, sessionID uuid.UUID, prevHash, nextHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := sessionKey{identityID, sessionID}
	cur, ok := r.rows[k]
	if !ok || cur.TokenHash != prevHash {
		return errs.ErrVersionConflict
	}
	cur.UsedHashes = append(slices.Clone(cur.UsedHashes), prevHash)
	cur.TokenHash = nextHash
	cur.ExpiresAt = expiresAt
	r.rows[k] = cur
	return nil
}
