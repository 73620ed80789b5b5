package trace

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestWithID_RoundTrip(t *testing.T) {
	t.Parallel()

	if got := ID(context.Background()); got != "" {
		t.Fatalf("empty ctx: got %q", got)
	}
	ctx := WithID(context.Background(), "abc")
	if got := ID(ctx); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := ID(Ensure(ctx)); got != "abc" {
		t.Fatalf("Ensure must keep existing id, got %q", got)
	}
}

func TestNewID_IsULID(t *testing.T) {
	t.Parallel()

	a, b := NewID(), NewID()
	if a == b {
		t.Fatalf("ids must differ")
	}
	if _, err := ulid.ParseStrict(a); err != nil {
		t.Fatalf("not a ulid: %v", err)
	}
	if ID(Ensure(context.Background())) == "" {
		t.Fatalf("Ensure must set an id")
	}
}
