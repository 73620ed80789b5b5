package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/authkeeper/internal/crypto"
	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/limiter"
	"github.com/and161185/authkeeper/internal/metrics"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/and161185/authkeeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

const (
	minUsernameLen = 6
	minPasswordLen = 6
	slugLen        = 8
)

// AuthService defines account creation, login and identity lookup.
type AuthService interface {
	// Register creates a new identity without starting a session.
	Register(ctx context.Context, username, email, password string) (model.IdentitySummary, error)
	// Login applies rate limiting, verifies credentials and starts a session.
	Login(ctx context.Context, identifier, secret, ip string) (model.LoginResult, error)
	// IdentityBySlug resolves a public slug id.
	IdentityBySlug(ctx context.Context, slug string) (model.IdentitySummary, error)
}

type AuthServiceImpl struct {
	identities repository.IdentityRepository
	verifier   *CredentialVerifier
	sessions   SessionService
	lim        limiter.Limiter
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAuthService constructs AuthService with required dependencies. m may be nil.
func NewAuthService(identities repository.IdentityRepository, sessions SessionService, lim limiter.Limiter, log *zap.Logger, m *metrics.Metrics) *AuthServiceImpl {
	return &AuthServiceImpl{
		identities: identities,
		verifier:   NewCredentialVerifier(identities),
		sessions:   sessions,
		lim:        lim,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// Register validates input and creates a user-role identity with a fresh slug.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (model.IdentitySummary, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := validateRegistration(username, email, password); err != nil {
		return model.IdentitySummary{}, err
	}
	u, err := newIdentity(username, email, password, s.now())
	if err != nil {
		return model.IdentitySummary{}, err
	}
	if err := s.identities.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.IdentitySummary{}, errs.ErrDuplicateIdentity
		}
		return model.IdentitySummary{}, fmt.Errorf("register: %w", err)
	}
	logFor(ctx, s.log).Info("identity registered", zap.String("identity_id", u.ID.String()))
	return u.Summary(), nil
}

// Login authenticates with rate limiting by (identifier, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, identifier, secret, ip string) (model.LoginResult, error) {
	log := logFor(ctx, s.log)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, identifier, ipHash)
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("login: limiter: %w", err)
	}
	if !allowed {
		s.metrics.Login("rate_limited")
		return model.LoginResult{}, errs.ErrRateLimited
	}

	u, err := s.verifier.Verify(ctx, identifier, secret)
	if errors.Is(err, errs.ErrInvalidCredentials) {
		if blocked, _, ferr := s.lim.Failure(ctx, identifier, ipHash); ferr == nil && blocked {
			log.Info("login blocked after repeated failures")
			s.metrics.Login("rate_limited")
			return model.LoginResult{}, errs.ErrRateLimited
		}
		s.metrics.Login("invalid_credentials")
		return model.LoginResult{}, errs.ErrInvalidCredentials
	}
	if err != nil {
		return model.LoginResult{}, err
	}

	// best-effort
	_ = s.lim.Success(ctx, identifier, ipHash)

	tokens, sid, err := s.sessions.Start(ctx, u.ID)
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("login: %w", err)
	}
	s.metrics.Login("ok")
	return model.LoginResult{Tokens: tokens, SessionID: sid, Identity: u.Summary()}, nil
}

// IdentityBySlug returns errs.ErrNotFound for an unknown or empty slug.
func (s *AuthServiceImpl) IdentityBySlug(ctx context.Context, slug string) (model.IdentitySummary, error) {
	if slug == "" {
		return model.IdentitySummary{}, errs.ErrNotFound
	}
	u, err := s.identities.GetBySlug(ctx, slug)
	if err != nil {
		return model.IdentitySummary{}, err
	}
	return u.Summary(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(username, email, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if !validEmail(email) {
		return errs.New(errs.KindInvalidArgument, "email is not valid")
	}
	return nil
}

// validateUsername keeps usernames disjoint from emails so a login identifier
// resolves to at most one identity.
func validateUsername(username string) error {
	switch {
	case len(username) < minUsernameLen:
		return errs.New(errs.KindInvalidArgument, fmt.Sprintf("username must be at least %d characters", minUsernameLen))
	case repository.IsEmailLogin(username):
		return errs.New(errs.KindInvalidArgument, "username must not contain '@'")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return errs.New(errs.KindInvalidArgument, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1
}

// newIdentity builds a user-role identity with hashed password and random slug.
func newIdentity(username, email, password string, now time.Time) (*model.Identity, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	slug, err := pkgcrypto.RandSlug(slugLen)
	if err != nil {
		return nil, err
	}
	return &model.Identity{
		ID:        id,
		Username:  username,
		Email:     email,
		PwdHash:   hash,
		Role:      model.RoleUser,
		SlugID:    slug,
		CreatedAt: now,
	}, nil
}
