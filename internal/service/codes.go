package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/authkeeper/internal/cache"
	pkgcrypto "github.com/and161185/authkeeper/internal/crypto"
	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/metrics"
	"github.com/and161185/authkeeper/internal/model"
	"github.com/and161185/authkeeper/internal/repository"
	"go.uber.org/zap"
)

const (
	codePrefix         = "otp:"
	usernameAttempts   = 5
	randomPasswordSize = 24
)

// CodeKey is the cache key holding the pending code for email.
func CodeKey(email string) string { return codePrefix + normalizeEmail(email) }

// CodeService implements registration gated by a one-time code.
type CodeService interface {
	// IssueCode stores a fresh code for an unregistered email and hands it to the sender.
	IssueCode(ctx context.Context, email string) (model.IssuedCode, error)
	// VerifyCode consumes a matching code, creates the identity and logs it in.
	VerifyCode(ctx context.Context, in model.VerifyCodeInput) (model.LoginResult, error)
}

// CodeOptions configures a CodeServiceImpl.
type CodeOptions struct {
	TTL    time.Duration // default 5m
	Digits int           // default 6
}

type CodeServiceImpl struct {
	identities repository.IdentityRepository
	sessions   SessionService
	cache      *cache.Cache
	sender     CodeSender
	log        *zap.Logger
	metrics    *metrics.Metrics
	opts       CodeOptions
	now        func() time.Time
}

// NewCodeService constructs CodeService. A nil sender logs codes at debug level.
func NewCodeService(identities repository.IdentityRepository, sessions SessionService, c *cache.Cache, sender CodeSender, log *zap.Logger, m *metrics.Metrics, opts CodeOptions) *CodeServiceImpl {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Digits <= 0 {
		opts.Digits = 6
	}
	if sender == nil {
		sender = LogSender{Log: log}
	}
	return &CodeServiceImpl{
		identities: identities,
		sessions:   sessions,
		cache:      c,
		sender:     sender,
		log:        log,
		metrics:    m,
		opts:       opts,
		now:        time.Now,
	}
}

// IssueCode replaces any pending code for email.
func (s *CodeServiceImpl) IssueCode(ctx context.Context, email string) (model.IssuedCode, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return model.IssuedCode{}, errs.New(errs.KindInvalidArgument, "email is not valid")
	}
	taken, err := s.identities.EmailExists(ctx, email)
	if err != nil {
		return model.IssuedCode{}, fmt.Errorf("issue code: %w", err)
	}
	if taken {
		s.metrics.Code("issue", "duplicate")
		return model.IssuedCode{}, errs.ErrDuplicateIdentity
	}

	code, err := pkgcrypto.RandDigits(s.opts.Digits)
	if err != nil {
		return model.IssuedCode{}, err
	}
	log := logFor(ctx, s.log)
	if !s.cache.Set(ctx, CodeKey(email), code, s.opts.TTL) {
		// the code cannot be verified later, still hand it out
		log.Warn("issue code: cache write failed")
	}
	if err := s.sender.Send(ctx, email, code); err != nil {
		return model.IssuedCode{}, fmt.Errorf("issue code: send: %w", err)
	}
	s.metrics.Code("issue", "ok")
	log.Info("code issued", zap.Duration("ttl", s.opts.TTL))
	return model.IssuedCode{Email: email, Code: code}, nil
}

// VerifyCode checks the stored code. Only a verification that goes on to create the
// identity consumes it; a mismatch or a rejected username/password keeps the entry
// so the caller may retry until it expires.
func (s *CodeServiceImpl) VerifyCode(ctx context.Context, in model.VerifyCodeInput) (model.LoginResult, error) {
	email := normalizeEmail(in.Email)
	key := CodeKey(email)
	username := strings.TrimSpace(in.Username)
	if username != "" {
		if err := validateUsername(username); err != nil {
			return model.LoginResult{}, err
		}
	}
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			return model.LoginResult{}, err
		}
	}

	var stored string
	if !validEmail(email) || !s.cache.Get(ctx, key, &stored) {
		s.metrics.Code("verify", "not_found")
		return model.LoginResult{}, errs.ErrCodeExpiredOrNotFound
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(in.Code))) != 1 {
		s.metrics.Code("verify", "mismatch")
		return model.LoginResult{}, errs.ErrCodeMismatch
	}
	if err := s.checkAvailable(ctx, email, username); err != nil {
		return model.LoginResult{}, err
	}
	// of concurrent verifications only the one that removes the entry proceeds
	if !s.cache.Take(ctx, key, &stored) {
		s.metrics.Code("verify", "not_found")
		return model.LoginResult{}, errs.ErrCodeExpiredOrNotFound
	}

	u, err := s.createIdentity(ctx, email, username, in.Password)
	if err != nil {
		return model.LoginResult{}, err
	}
	tokens, sid, err := s.sessions.Start(ctx, u.ID)
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("verify code: %w", err)
	}
	s.metrics.Code("verify", "ok")
	logFor(ctx, s.log).Info("identity registered by code", zap.String("identity_id", u.ID.String()))
	return model.LoginResult{Tokens: tokens, SessionID: sid, Identity: u.Summary()}, nil
}

// checkAvailable rejects an email registered since the code was issued and an
// explicit username that is already taken.
func (s *CodeServiceImpl) checkAvailable(ctx context.Context, email, username string) error {
	taken, err := s.identities.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("verify code: %w", err)
	}
	if taken {
		return errs.ErrDuplicateIdentity
	}
	if username == "" {
		return nil
	}
	_, err = s.identities.GetByLogin(ctx, username)
	switch {
	case err == nil:
		return errs.New(errs.KindDuplicateIdentity, "username is taken")
	case errors.Is(err, errs.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("verify code: %w", err)
	}
}

// createIdentity derives missing username and password. A derived username gets a
// numeric suffix when taken.
func (s *CodeServiceImpl) createIdentity(ctx context.Context, email, username, password string) (*model.Identity, error) {
	if password == "" {
		p, err := pkgcrypto.RandToken(randomPasswordSize)
		if err != nil {
			return nil, err
		}
		password = p
	}

	explicit := username != ""
	base := username
	if !explicit {
		base = email[:strings.IndexByte(email, '@')]
	}

	candidate := base
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		if attempt > 0 {
			suffix, err := pkgcrypto.RandDigits(4)
			if err != nil {
				return nil, err
			}
			candidate = base + suffix
		}
		u, err := newIdentity(candidate, email, password, s.now())
		if err != nil {
			return nil, err
		}
		err = s.identities.Create(ctx, u)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, errs.ErrAlreadyExists) {
			return nil, fmt.Errorf("verify code: create identity: %w", err)
		}
		taken, eerr := s.identities.EmailExists(ctx, email)
		if eerr != nil {
			return nil, fmt.Errorf("verify code: %w", eerr)
		}
		if taken || explicit {
			return nil, errs.ErrDuplicateIdentity
		}
	}
	return nil, errs.ErrDuplicateIdentity
}
