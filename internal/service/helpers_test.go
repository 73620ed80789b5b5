package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/and161185/authkeeper/internal/cache"
	"github.com/and161185/authkeeper/internal/limiter"
	"github.com/and161185/authkeeper/internal/repository/memory"
	"github.com/and161185/authkeeper/internal/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

const testKey = "0123456789abcdef0123456789abcdef"

type env struct {
	mr         *miniredis.Miniredis
	cache      *cache.Cache
	issuer     *token.Issuer
	identities *memory.Identities
	store      *memory.Sessions
	sessions   *SessionServiceImpl
	auth       *AuthServiceImpl
	codes      *CodeServiceImpl
	sender     *recordingSender
	authn      *Authenticator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	log := zaptest.NewLogger(t)
	c := cache.New(rc, log, cache.Options{RetryBase: time.Millisecond})
	iss, err := token.NewIssuer(token.Options{
		SignKey:    []byte(testKey),
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	e := &env{
		mr:         mr,
		cache:      c,
		issuer:     iss,
		identities: memory.NewIdentities(),
		store:      memory.NewSessions(),
		sender:     &recordingSender{},
	}
	e.sessions = NewSessionService(e.store, iss, c, log, nil, SessionOptions{LogoutFallbackTTL: time.Minute})
	e.auth = NewAuthService(e.identities, e.sessions, limiter.Nop{}, log, nil)
	e.codes = NewCodeService(e.identities, e.sessions, c, e.sender, log, nil, CodeOptions{})
	e.authn = NewAuthenticator(iss, c)
	return e
}

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (r *recordingSender) Send(_ context.Context, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes == nil {
		r.codes = map[string]string{}
	}
	r.codes[email] = code
	return nil
}

func (r *recordingSender) last(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[strings.ToLower(email)]
}
