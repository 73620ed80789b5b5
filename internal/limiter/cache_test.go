package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/and161185/authkeeper/internal/cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLimiter(t *testing.T, maxFails int) (*Cached, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	c := cache.New(rc, zap.NewNop(), cache.Options{RetryBase: time.Millisecond, Attempts: 1})
	return NewCached(c, 15*time.Minute, maxFails, 10*time.Minute), mr
}

func TestAllow_NoState_Allows(t *testing.T) {
	l, _ := newLimiter(t, 3)
	ok, dur, err := l.Allow(context.Background(), "u", HashIP("1.2.3.4"))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("Allow empty: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	l, mr := newLimiter(t, 3)
	ctx := context.Background()
	ip := HashIP("1.2.3.4")

	for i := 1; i < 3; i++ {
		blocked, _, err := l.Failure(ctx, "Alice@X.com", ip)
		if err != nil || blocked {
			t.Fatalf("failure %d: blocked=%v err=%v", i, blocked, err)
		}
	}
	blocked, dur, err := l.Failure(ctx, "alice@x.com", ip)
	if err != nil || !blocked || dur != 10*time.Minute {
		t.Fatalf("3rd failure: blocked=%v dur=%v err=%v", blocked, dur, err)
	}

	ok, retry, _ := l.Allow(ctx, "alice@x.com", ip)
	if ok || retry <= 0 {
		t.Fatalf("want blocked, got ok=%v retry=%v", ok, retry)
	}

	// other ip unaffected
	if ok, _, _ := l.Allow(ctx, "alice@x.com", HashIP("5.6.7.8")); !ok {
		t.Fatalf("other ip must be allowed")
	}

	// block elapses with the entry
	mr.FastForward(11 * time.Minute)
	if ok, _, _ := l.Allow(ctx, "alice@x.com", ip); !ok {
		t.Fatalf("block must lapse")
	}
}

func TestSuccess_Resets(t *testing.T) {
	l, _ := newLimiter(t, 2)
	ctx := context.Background()
	ip := HashIP("ip")

	_, _, _ = l.Failure(ctx, "u", ip)
	if err := l.Success(ctx, "u", ip); err != nil {
		t.Fatalf("Success: %v", err)
	}
	if blocked, _, _ := l.Failure(ctx, "u", ip); blocked {
		t.Fatalf("counter must restart after success")
	}
}

func TestCached_FailsOpenWhenCacheDown(t *testing.T) {
	l, mr := newLimiter(t, 1)
	mr.Close()
	ctx := context.Background()
	ip := HashIP("ip")

	blocked, _, err := l.Failure(ctx, "u", ip)
	if err != nil || !blocked {
		// threshold 1 still reports the block even if it could not be stored
		t.Fatalf("Failure: blocked=%v err=%v", blocked, err)
	}
	if ok, _, err := l.Allow(ctx, "u", ip); err != nil || !ok {
		t.Fatalf("cache down must allow: ok=%v err=%v", ok, err)
	}
}

func TestHashIP_Determinism(t *testing.T) {
	a := HashIP("1.2.3.4:123")
	b := HashIP("1.2.3.4:123")
	c := HashIP("5.6.7.8:321")
	if string(a) != string(b) || string(a) == string(c) || len(a) != 32 {
		t.Fatalf("hash mismatch/len: %d", len(a))
	}
}

func TestCached_UsernamesAreCaseSensitive(t *testing.T) {
	l, _ := newLimiter(t, 1)
	ctx := context.Background()
	ip := HashIP("ip")

	if blocked, _, _ := l.Failure(ctx, "Alice1", ip); !blocked {
		t.Fatalf("threshold 1 must block")
	}
	if ok, _, _ := l.Allow(ctx, "Alice1", ip); ok {
		t.Fatalf("Alice1 must be blocked")
	}
	if ok, _, _ := l.Allow(ctx, "alice1", ip); !ok {
		t.Fatalf("alice1 is a different account and must be allowed")
	}
}
