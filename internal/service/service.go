// Package service contains the authentication and session services: credential
// verification, login, registration, the one-time-code flow, refresh-token
// rotation, logout and session listing.
package service

import (
	"context"
	"time"

	"github.com/and161185/authkeeper/internal/model"
	"github.com/and161185/authkeeper/internal/token"
	"github.com/and161185/authkeeper/internal/trace"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// TokenIssuer mints token pairs and reads bearer tokens. *token.Issuer implements it.
type TokenIssuer interface {
	Issue(identityID uuid.UUID) (model.Tokens, model.RefreshToken, error)
	HashRefresh(plain string) string
	Verify(bearer string) (token.Claims, error)
	ExpiresAt(bearer string) (time.Time, error)
}

var _ TokenIssuer = (*token.Issuer)(nil)

// logFor returns log annotated with the request trace id.
func logFor(ctx context.Context, log *zap.Logger) *zap.Logger {
	if id := trace.ID(ctx); id != "" {
		return log.With(zap.String("trace_id", id))
	}
	return log
}
