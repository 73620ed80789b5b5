package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/authkeeper/internal/cache"
	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/metrics"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/and161185/authkeeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// SessionService manages the lifetime of login sessions.
type SessionService interface {
	// Start creates a session for identityID and returns its first token pair.
	Start(ctx context.Context, identityID uuid.UUID) (model.Tokens, uuid.UUID, error)
	// Rotate exchanges a refresh token for a new pair, detecting reuse.
	Rotate(ctx context.Context, identityID, sessionID uuid.UUID, refreshToken string) (model.RotateResult, error)
	// Logout ends a session and blacklists its bearer token.
	Logout(ctx context.Context, identityID, sessionID uuid.UUID, bearer string) error
	// List returns the ids of the identity's sessions, oldest first.
	List(ctx context.Context, identityID uuid.UUID) ([]uuid.UUID, error)
	// RevokeAll ends every session of the identity and returns how many were removed.
	RevokeAll(ctx context.Context, identityID uuid.UUID) (int64, error)
}

// SessionOptions configures a SessionServiceImpl.
type SessionOptions struct {
	// LogoutFallbackTTL is the blacklist TTL used when a bearer token's expiry
	// cannot be decoded.
	LogoutFallbackTTL time.Duration
}

type SessionServiceImpl struct {
	sessions repository.SessionRepository
	issuer   TokenIssuer
	cache    *cache.Cache
	log      *zap.Logger
	metrics  *metrics.Metrics
	opts     SessionOptions
	now      func() time.Time
}

// NewSessionService constructs SessionService with required dependencies. m may be nil.
func NewSessionService(sessions repository.SessionRepository, issuer TokenIssuer, c *cache.Cache, log *zap.Logger, m *metrics.Metrics, opts SessionOptions) *SessionServiceImpl {
	if opts.LogoutFallbackTTL <= 0 {
		opts.LogoutFallbackTTL = 5 * time.Minute
	}
	return &SessionServiceImpl{sessions: sessions, issuer: issuer, cache: c, log: log, metrics: m, opts: opts, now: time.Now}
}

// Start mints a token pair and persists a new session holding the refresh hash.
func (s *SessionServiceImpl) Start(ctx context.Context, identityID uuid.UUID) (model.Tokens, uuid.UUID, error) {
	tokens, rt, err := s.issuer.Issue(identityID)
	if err != nil {
		return model.Tokens{}, uuid.Nil, fmt.Errorf("issue tokens: %w", err)
	}
	sid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	rec := &model.Session{
		ID:         sid,
		IdentityID: identityID,
		TokenHash:  rt.Hash,
		UsedHashes: []string{},
		ExpiresAt:  rt.ExpiresAt,
		CreatedAt:  s.now(),
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		return model.Tokens{}, uuid.Nil, fmt.Errorf("create session: %w", err)
	}
	logFor(ctx, s.log).Info("session started",
		zap.String("identity_id", identityID.String()),
		zap.String("session_id", sid.String()),
	)
	return tokens, sid, nil
}

// Rotate evaluates, in order: unknown session, reuse of a rotated-away token,
// foreign token, expiry, and finally advances the session.
func (s *SessionServiceImpl) Rotate(ctx context.Context, identityID, sessionID uuid.UUID, refreshToken string) (model.RotateResult, error) {
	log := logFor(ctx, s.log).With(
		zap.String("identity_id", identityID.String()),
		zap.String("session_id", sessionID.String()),
	)

	rec, err := s.sessions.FindByIdentityAndSession(ctx, identityID, sessionID)
	if errors.Is(err, errs.ErrNotFound) {
		s.metrics.Rotation(metrics.RotationNotFound)
		return model.RotateResult{}, errs.ErrSessionNotFound
	}
	if err != nil {
		return model.RotateResult{}, fmt.Errorf("rotate: find session: %w", err)
	}

	presented := s.issuer.HashRefresh(refreshToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(rec.TokenHash)) != 1 {
		if rec.WasUsed(presented) {
			log.Warn("refresh token reuse, revoking all sessions")
			s.metrics.Rotation(metrics.RotationReuse)
			return model.RotateResult{}, s.breach(ctx, identityID)
		}
		s.metrics.Rotation(metrics.RotationInvalid)
		return model.RotateResult{}, errs.ErrInvalidToken
	}

	if rec.Expired(s.now()) {
		if err := s.sessions.DeleteBySession(ctx, identityID, sessionID); err != nil {
			return model.RotateResult{}, fmt.Errorf("rotate: delete expired session: %w", err)
		}
		log.Info("expired session removed")
		s.metrics.Rotation(metrics.RotationExpired)
		return model.RotateResult{}, errs.ErrTokenExpired
	}

	tokens, rt, err := s.issuer.Issue(identityID)
	if err != nil {
		return model.RotateResult{}, fmt.Errorf("rotate: issue tokens: %w", err)
	}
	err = s.sessions.Advance(ctx, identityID, sessionID, presented, rt.Hash, rt.ExpiresAt)
	if errors.Is(err, errs.ErrVersionConflict) {
		// a concurrent rotation consumed the same token first
		log.Warn("concurrent rotation of one refresh token, revoking all sessions")
		s.metrics.Rotation(metrics.RotationRace)
		return model.RotateResult{}, s.breach(ctx, identityID)
	}
	if err != nil {
		return model.RotateResult{}, fmt.Errorf("rotate: advance session: %w", err)
	}

	log.Info("session rotated")
	s.metrics.Rotation(metrics.RotationOK)
	return model.RotateResult{Tokens: tokens, SessionID: sessionID}, nil
}

// breach wipes every session of the identity and returns the ReuseDetected error.
// The wipe completes before the error is handed back.
func (s *SessionServiceImpl) breach(ctx context.Context, identityID uuid.UUID) error {
	n, err := s.sessions.DeleteAllByIdentity(ctx, identityID)
	if err != nil {
		return errors.Join(errs.ErrReuseDetected, fmt.Errorf("revoke sessions: %w", err))
	}
	logFor(ctx, s.log).Warn("sessions revoked after reuse",
		zap.String("identity_id", identityID.String()),
		zap.Int64("count", n),
	)
	return errs.ErrReuseDetected
}

// Logout deletes the session (idempotent) and blacklists bearer for the rest of its
// lifetime. The blacklist write is best-effort.
func (s *SessionServiceImpl) Logout(ctx context.Context, identityID, sessionID uuid.UUID, bearer string) error {
	log := logFor(ctx, s.log).With(
		zap.String("identity_id", identityID.String()),
		zap.String("session_id", sessionID.String()),
	)
	if err := s.sessions.DeleteBySession(ctx, identityID, sessionID); err != nil {
		return fmt.Errorf("logout: delete session: %w", err)
	}

	ttl := s.opts.LogoutFallbackTTL
	if exp, err := s.issuer.ExpiresAt(bearer); err == nil {
		ttl = exp.Sub(s.now())
	} else {
		log.Warn("logout: bearer expiry unreadable, using fallback ttl", zap.Error(err))
	}
	if ttl > 0 && !s.cache.Set(ctx, BlacklistKey(bearer), true, ttl) {
		log.Warn("logout: blacklist write failed")
	}

	log.Info("session logged out")
	s.metrics.Logout()
	return nil
}

// List returns the identity's session ids.
func (s *SessionServiceImpl) List(ctx context.Context, identityID uuid.UUID) ([]uuid.UUID, error) {
	recs, err := s.sessions.FindAllByIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// RevokeAll deletes every session of the identity.
func (s *SessionServiceImpl) RevokeAll(ctx context.Context, identityID uuid.UUID) (int64, error) {
	n, err := s.sessions.DeleteAllByIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("revoke all: %w", err)
	}
	logFor(ctx, s.log).Info("all sessions revoked",
		zap.String("identity_id", identityID.String()),
		zap.Int64("count", n),
	)
	return n, nil
}
