package limiter

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/and161185/authkeeper/internal/cache"
	"github.com/and161185/authkeeper/internal/repository"
)

const keyPrefix = "login-limit:"

// state is the JSON document kept per (identifier, ip).
type state struct {
	Fails        int       `json:"fails"`
	BlockedUntil time.Time `json:"blocked_until"`
}

// Cached is a limiter whose counters live in the ephemeral cache. It fails open:
// when the cache is unavailable every attempt is allowed.
//
// Counter updates are read-modify-write and may undercount under concurrent
// failures for the same key; the limiter is a throttle, not a security boundary.
type Cached struct {
	c        *cache.Cache
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewCached constructs a cache-backed limiter: maxFails failures inside window block
// the (identifier, ip) pair for blockFor.
func NewCached(c *cache.Cache, window time.Duration, maxFails int, blockFor time.Duration) *Cached {
	return &Cached{c: c, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

// key folds case only for emails; usernames are case-sensitive.
func key(identifier string, ipHash []byte) string {
	if repository.IsEmailLogin(identifier) {
		identifier = strings.ToLower(identifier)
	}
	return keyPrefix + identifier + ":" + hex.EncodeToString(ipHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Cached) Allow(ctx context.Context, identifier string, ipHash []byte) (bool, time.Duration, error) {
	var st state
	if !l.c.Get(ctx, key(identifier, ipHash), &st) {
		return true, 0, nil
	}
	if now := l.now(); st.BlockedUntil.After(now) {
		return false, st.BlockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for (identifier, ip).
func (l *Cached) Success(ctx context.Context, identifier string, ipHash []byte) error {
	l.c.Delete(ctx, key(identifier, ipHash))
	return nil
}

// Failure records a failed attempt; reaching maxFails sets a block.
func (l *Cached) Failure(ctx context.Context, identifier string, ipHash []byte) (bool, time.Duration, error) {
	k := key(identifier, ipHash)
	var st state
	l.c.Get(ctx, k, &st)
	st.Fails++
	if st.Fails >= l.maxFails {
		st.BlockedUntil = l.now().Add(l.blockFor)
		l.c.Set(ctx, k, st, l.blockFor)
		return true, l.blockFor, nil
	}
	// window restarts from the latest failure
	l.c.Set(ctx, k, st, l.window)
	return false, 0, nil
}
