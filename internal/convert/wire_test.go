package convert

import (
	"testing"
	"time"

	"github.com/and161185/authkeeper/internal/api/authv1"
	"github.com/and161185/authkeeper/internal/model"
	u "github.com/gofrs/uuid/v5"
)

func TestToLoginResponse(t *testing.T) {
	t.Parallel()

	id, sid := u.Must(u.NewV4()), u.Must(u.NewV4())
	exp := time.Unix(1_700_000_000, 0)
	r := ToLoginResponse(model.LoginResult{
		Tokens:    model.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: exp},
		SessionID: sid,
		Identity:  model.IdentitySummary{ID: id, Username: "alice1", Email: "a@x.com", Role: "user", SlugID: "AB12CD34"},
	})
	if r.AccessToken != "a" || r.RefreshToken != "r" || r.ExpiresAt != exp.Unix() || r.SessionID != sid.String() {
		t.Fatalf("tokens: %+v", r)
	}
	if r.Identity.ID != id.String() || r.Identity.SlugID != "AB12CD34" {
		t.Fatalf("identity: %+v", r.Identity)
	}
}

func TestToSessionIDs_EmptyIsNotNil(t *testing.T) {
	t.Parallel()

	if ids := ToSessionIDs(nil); ids == nil || len(ids) != 0 {
		t.Fatalf("want empty slice, got %#v", ids)
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	want := u.Must(u.NewV4())
	got, err := ParseID("session_id", want.String())
	if err != nil || got != want {
		t.Fatalf("ParseID: %v %v", got, err)
	}
	for _, bad := range []string{"", "nope", u.Nil.String()} {
		if _, err := ParseID("session_id", bad); err == nil {
			t.Fatalf("want error for %q", bad)
		}
	}
}

func TestFromVerifyCodeRequest(t *testing.T) {
	t.Parallel()

	in := FromVerifyCodeRequest(&authv1.VerifyCodeRequest{Email: "a@b.com", Code: "1", Username: "x", Password: "y"})
	if in != (model.VerifyCodeInput{Email: "a@b.com", Code: "1", Username: "x", Password: "y"}) {
		t.Fatalf("got %+v", in)
	}
}
