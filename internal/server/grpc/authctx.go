package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/authkeeper/internal/api/authv1"
	"github.com/and161185/authkeeper/internal/token"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	identityIDKey ctxKey = "ak.identityID"
	bearerKey     ctxKey = "ak.bearer"
)

// WithIdentityID stores the authenticated identity ID in context.
func WithIdentityID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, identityIDKey, id)
}

// IdentityIDFromCtx fetches the authenticated identity ID from context.
func IdentityIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(identityIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// WithBearer stores the verified bearer token in context.
func WithBearer(ctx context.Context, bearer string) context.Context {
	return context.WithValue(ctx, bearerKey, bearer)
}

// BearerFromCtx fetches the verified bearer token from context.
func BearerFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(bearerKey).(string)
	return v, ok
}

// BearerAuthenticator verifies bearer tokens presented in call metadata.
type BearerAuthenticator interface {
	Authenticate(ctx context.Context, bearer string) (token.Claims, error)
}

// protectedMethods require "authorization: Bearer <JWT>".
var protectedMethods = map[string]bool{
	authv1.FullMethod(authv1.MethodLogout):       true,
	authv1.FullMethod(authv1.MethodListSessions): true,
	authv1.FullMethod(authv1.MethodRevokeAll):    true,
}

// AuthUnary authenticates protected methods and stores the identity and bearer in
// the handler context.
func AuthUnary(authn BearerAuthenticator, log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !protectedMethods[info.FullMethod] {
			return next(ctx, req)
		}
		bearer, err := bearerTokenFromMD(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		claims, err := authn.Authenticate(ctx, bearer)
		if err != nil {
			return nil, toStatus(ctx, log, "authenticate", err)
		}
		ctx = WithBearer(WithIdentityID(ctx, claims.IdentityID), bearer)
		return next(ctx, req)
	}
}

// bearerTokenFromMD extracts "authorization: Bearer <JWT>".
func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
