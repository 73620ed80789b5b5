// Package trace carries a per-request trace id in context.Context.
package trace

import (
	"context"
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// MetadataKey is the gRPC metadata key holding the trace id.
const MetadataKey = "x-trace-id"

type ctxKey struct{}

// WithID returns ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the trace id stored in ctx, or "" when none is set.
func ID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewID mints a fresh, lexically time-ordered trace id.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Ensure returns ctx unchanged if it already carries an id, otherwise ctx with a new one.
func Ensure(ctx context.Context) context.Context {
	if ID(ctx) != "" {
		return ctx
	}
	return WithID(ctx, NewID())
}
