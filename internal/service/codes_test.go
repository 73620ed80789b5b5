package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/model"
)

func TestCodes_IssueThenVerifyOnce(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	issued, err := e.codes.IssueCode(ctx, "A@B.com")
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if issued.Email != "a@b.com" || len(issued.Code) != 6 || e.sender.last("a@b.com") != issued.Code {
		t.Fatalf("bad issued code: %+v", issued)
	}
	if ttl := e.mr.TTL(CodeKey("a@b.com")); ttl != 5*time.Minute {
		t.Fatalf("code ttl %v", ttl)
	}

	res, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "a@b.com", Code: issued.Code})
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if res.Identity.Username != "a" || res.Identity.Email != "a@b.com" || res.Tokens.RefreshToken == "" {
		t.Fatalf("bad result: %+v", res)
	}
	if _, err := e.store.FindByIdentityAndSession(ctx, res.Identity.ID, res.SessionID); err != nil {
		t.Fatalf("registration must start a session: %v", err)
	}

	_, err = e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "a@b.com", Code: issued.Code})
	if !errors.Is(err, errs.ErrCodeExpiredOrNotFound) {
		t.Fatalf("second verify: want CodeExpiredOrNotFound, got %v", err)
	}
}

func TestCodes_MismatchKeepsEntry(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	issued, _ := e.codes.IssueCode(ctx, "a@b.com")

	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	if _, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "a@b.com", Code: wrong}); !errors.Is(err, errs.ErrCodeMismatch) {
		t.Fatalf("want CodeMismatch, got %v", err)
	}
	if _, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "a@b.com", Code: issued.Code}); err != nil {
		t.Fatalf("correct code after mismatch: %v", err)
	}
}

func TestCodes_RejectedRequestKeepsEntry(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.auth.Register(ctx, "takenname", "other@x.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	issued, _ := e.codes.IssueCode(ctx, "p@x.com")

	for _, in := range []model.VerifyCodeInput{
		{Password: "abc"},
		{Username: "p@x.com"},
		{Username: "takenname"},
	} {
		in.Email, in.Code = "p@x.com", issued.Code
		_, err := e.codes.VerifyCode(ctx, in)
		if k := errs.KindOf(err); k != errs.KindInvalidArgument && k != errs.KindDuplicateIdentity {
			t.Fatalf("%+v: want a client error, got %v", in, err)
		}
	}

	res, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "p@x.com", Code: issued.Code, Password: "abcdefgh"})
	if err != nil {
		t.Fatalf("retry with the same code: %v", err)
	}
	if _, err := e.auth.Login(ctx, res.Identity.Username, "abcdefgh", "ip"); err != nil {
		t.Fatalf("login with supplied password: %v", err)
	}
}

func TestCodes_ExpireWithTTL(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	issued, _ := e.codes.IssueCode(ctx, "a@b.com")

	e.mr.FastForward(5*time.Minute + time.Second)
	if _, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "a@b.com", Code: issued.Code}); !errors.Is(err, errs.ErrCodeExpiredOrNotFound) {
		t.Fatalf("want CodeExpiredOrNotFound, got %v", err)
	}
}

func TestCodes_IssueRejectsRegisteredEmail(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.auth.Register(ctx, "taken1", "taken@x.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := e.codes.IssueCode(ctx, "Taken@x.com"); !errors.Is(err, errs.ErrDuplicateIdentity) {
		t.Fatalf("want DuplicateIdentity, got %v", err)
	}
	if _, err := e.codes.IssueCode(ctx, "nope"); errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestCodes_DerivedUsernameGetsSuffixOnCollision(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	// "bob.smith" is held by another address
	if _, err := e.auth.Register(ctx, "bob.smith", "bob@other.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	issued, _ := e.codes.IssueCode(ctx, "bob.smith@x.com")
	res, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "bob.smith@x.com", Code: issued.Code})
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	u := res.Identity.Username
	if u == "bob.smith" || !strings.HasPrefix(u, "bob.smith") || len(u) != len("bob.smith")+4 {
		t.Fatalf("want suffixed username, got %q", u)
	}
}

func TestCodes_SuppliedCredentialsAreUsed(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	issued, _ := e.codes.IssueCode(ctx, "carol@x.com")
	res, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{
		Email: "carol@x.com", Code: issued.Code, Username: "carol99", Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if res.Identity.Username != "carol99" {
		t.Fatalf("username: %q", res.Identity.Username)
	}
	if _, err := e.auth.Login(ctx, "carol99", "hunter22", ""); err != nil {
		t.Fatalf("login with supplied password: %v", err)
	}
}

// Registration by code, login, two rotations, then a replay of the first refresh
// token ends every session of the identity.
func TestScenario_CodeRegistrationRotationReplay(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	issued, err := e.codes.IssueCode(ctx, "u1@x.com")
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	reg, err := e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "u1@x.com", Code: issued.Code, Password: "u1-secret"})
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	uid := reg.Identity.ID

	login, err := e.auth.Login(ctx, "u1@x.com", "u1-secret", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	r0 := login.Tokens.RefreshToken
	r1, err := e.sessions.Rotate(ctx, uid, login.SessionID, r0)
	if err != nil {
		t.Fatalf("rotate R0: %v", err)
	}
	if _, err := e.sessions.Rotate(ctx, uid, login.SessionID, r1.Tokens.RefreshToken); err != nil {
		t.Fatalf("rotate R1: %v", err)
	}

	if _, err := e.sessions.Rotate(ctx, uid, login.SessionID, r0); !errors.Is(err, errs.ErrReuseDetected) {
		t.Fatalf("replay R0: want ReuseDetected, got %v", err)
	}
	ids, err := e.sessions.List(ctx, uid)
	if err != nil || len(ids) != 0 {
		t.Fatalf("sessions after replay: %v %v", ids, err)
	}
}

func TestIssueCode_CacheDownStillIssuesButCannotVerify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mr.Close()

	out, err := e.codes.IssueCode(ctx, "down@x.com")
	if err != nil || out.Code == "" {
		t.Fatalf("IssueCode with cache down: %+v %v", out, err)
	}
	_, err = e.codes.VerifyCode(ctx, model.VerifyCodeInput{Email: "down@x.com", Code: out.Code})
	if !errors.Is(err, errs.ErrCodeExpiredOrNotFound) {
		t.Fatalf("want CodeExpiredOrNotFound, got %v", err)
	}
}
