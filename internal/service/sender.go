package service

import (
	"context"

	"go.uber.org/zap"
)

// CodeSender delivers a one-time code to its owner.
type CodeSender interface {
	Send(ctx context.Context, email, code string) error
}

// LogSender writes codes to the debug log. Meant for development setups where no
// mail relay is configured.
type LogSender struct{ Log *zap.Logger }

func (s LogSender) Send(ctx context.Context, email, code string) error {
	logFor(ctx, s.Log).Debug("one-time code", zap.String("email", email), zap.String("code", code))
	return nil
}
