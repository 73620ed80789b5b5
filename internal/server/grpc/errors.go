package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/authkeeper/internal/errs"
	"github.com/and161185/authkeeper/internal/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ErrorKindKey is the trailer carrying the error kind of a failed call.
const ErrorKindKey = "x-error-kind"

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindInvalidCredentials:    codes.Unauthenticated,
	errs.KindDuplicateIdentity:     codes.AlreadyExists,
	errs.KindSessionNotFound:       codes.NotFound,
	errs.KindInvalidToken:          codes.Unauthenticated,
	errs.KindReuseDetected:         codes.PermissionDenied,
	errs.KindTokenExpired:          codes.Unauthenticated,
	errs.KindCodeExpiredOrNotFound: codes.NotFound,
	errs.KindCodeMismatch:          codes.InvalidArgument,
	errs.KindRateLimited:           codes.ResourceExhausted,
	errs.KindInvalidArgument:       codes.InvalidArgument,
}

// CodeOf returns the gRPC code for an error kind.
func CodeOf(k errs.Kind) codes.Code {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return codes.Internal
}

// toStatus maps a service error to a gRPC status. Kinds keep their message and are
// repeated in the x-error-kind trailer; anything else is an opaque internal error.
func toStatus(ctx context.Context, log *zap.Logger, op string, err error) error {
	if k := errs.KindOf(err); k != "" {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindKey, string(k)))
		return status.Error(CodeOf(k), errs.New(k, errs.MessageOf(err)).Error())
	}
	if errors.Is(err, errs.ErrNotFound) {
		return status.Error(codes.NotFound, "not found")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	log.Error(op, zap.Error(err), zap.String("trace_id", trace.ID(ctx)))
	return status.Errorf(codes.Internal, "%s: internal error", op)
}

// kindOfStatus recovers the error kind from a status built by toStatus.
func kindOfStatus(err error) errs.Kind {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return ""
	}
	prefix, _, _ := strings.Cut(st.Message(), ":")
	k := errs.Kind(prefix)
	if _, known := kindCodes[k]; !known || CodeOf(k) != st.Code() {
		return ""
	}
	return k
}
