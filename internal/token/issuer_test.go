package token

import (
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Options{SignKey: testKey, AccessTTL: 5 * time.Minute, RefreshTTL: 7 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestNewIssuer_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer(Options{SignKey: []byte("short"), AccessTTL: time.Minute, RefreshTTL: time.Hour}); err != ErrKeyTooShort {
		t.Fatalf("want ErrKeyTooShort, got %v", err)
	}
	if _, err := NewIssuer(Options{SignKey: testKey, RefreshTTL: time.Hour}); err == nil {
		t.Fatalf("want error on zero access ttl")
	}
}

func TestIssue_PairShapeAndLifetimes(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iss.now = func() time.Time { return now }
	uid := uuid.Must(uuid.NewV4())

	tok, rt, err := iss.Issue(uid)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(tok.AccessToken, ".") != 2 {
		t.Fatalf("not a compact JWS: %q", tok.AccessToken)
	}
	if !tok.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("access exp = %v", tok.ExpiresAt)
	}
	if rt.Plain == "" || rt.Plain != tok.RefreshToken {
		t.Fatalf("refresh token not returned: %+v", rt)
	}
	if rt.Hash != iss.HashRefresh(rt.Plain) || rt.Hash == rt.Plain {
		t.Fatalf("bad refresh hash")
	}
	if !rt.ExpiresAt.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("refresh exp = %v", rt.ExpiresAt)
	}

	_, rt2, err := iss.Issue(uid)
	if err != nil {
		t.Fatalf("Issue(2): %v", err)
	}
	if rt2.Plain == rt.Plain || rt2.Hash == rt.Hash {
		t.Fatalf("refresh tokens must never repeat")
	}
}

func TestVerify_ValidExpiredForeign(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(t)
	uid := uuid.Must(uuid.NewV4())
	tok, _, err := iss.Issue(uid)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := iss.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.IdentityID != uid || claims.TokenID == "" {
		t.Fatalf("bad claims: %+v", claims)
	}

	// later than exp + leeway
	iss.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	if _, err := iss.Verify(tok.AccessToken); err == nil {
		t.Fatalf("want expiry error")
	}

	other, _ := NewIssuer(Options{SignKey: []byte("ffffffffffffffffffffffffffffffff"), AccessTTL: time.Minute, RefreshTTL: time.Hour})
	foreign, _, _ := other.Issue(uid)
	if _, err := newTestIssuer(t).Verify(foreign.AccessToken); err == nil {
		t.Fatalf("want signature error")
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := jwt.RegisteredClaims{
		Issuer:    "authkeeper",
		Subject:   uuid.Must(uuid.NewV4()).String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestIssuer(t).Verify(s); err == nil {
		t.Fatalf("want method rejection")
	}
}

func TestExpiresAt_DecodesEvenWhenExpired(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer(t)
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	iss.now = func() time.Time { return past }
	tok, _, _ := iss.Issue(uuid.Must(uuid.NewV4()))

	exp, err := newTestIssuer(t).ExpiresAt(tok.AccessToken)
	if err != nil {
		t.Fatalf("ExpiresAt: %v", err)
	}
	if !exp.Equal(past.Add(5 * time.Minute)) {
		t.Fatalf("exp = %v, want %v", exp, past.Add(5*time.Minute))
	}

	if _, err := iss.ExpiresAt("garbage"); err == nil {
		t.Fatalf("want decode error")
	}
}
