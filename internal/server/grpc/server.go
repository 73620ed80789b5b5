// Package grpcserver exposes the authkeeper gRPC API handlers.
package grpcserver

import (
	"context"
	"net"

	"github.com/and161185/authkeeper/internal/api/authv1"
	"github.com/and161185/authkeeper/internal/convert"
	"github.com/and161185/authkeeper/internal/service"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Server wires services into gRPC handlers.
type Server struct {
	authv1.UnimplementedAuthServiceServer
	auth     service.AuthService
	codes    service.CodeService
	sessions service.SessionService
	log      *zap.Logger
}

// New constructs a gRPC server with injected services.
// Logout, ListSessions and RevokeAll expect AuthUnary in the interceptor chain.
func New(auth service.AuthService, codeSvc service.CodeService, sessions service.SessionService, log *zap.Logger) *Server {
	return &Server{auth: auth, codes: codeSvc, sessions: sessions, log: log}
}

// --- Accounts ---

// Register creates a new identity.
func (s *Server) Register(ctx context.Context, req *authv1.RegisterRequest) (*authv1.RegisterResponse, error) {
	sum, err := s.auth.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(ctx, s.log, "register", err)
	}
	return &authv1.RegisterResponse{Identity: convert.ToWireIdentity(sum)}, nil
}

// remoteIP returns the caller's host without the ephemeral port.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Login authenticates an identity and starts a session.
func (s *Server) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.LoginResponse, error) {
	if req.Identifier == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty identifier/password")
	}
	res, err := s.auth.Login(ctx, req.Identifier, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, toStatus(ctx, s.log, "login", err)
	}
	return convert.ToLoginResponse(res), nil
}

// IssueCode sends a registration code to an unregistered email.
func (s *Server) IssueCode(ctx context.Context, req *authv1.IssueCodeRequest) (*authv1.IssueCodeResponse, error) {
	out, err := s.codes.IssueCode(ctx, req.Email)
	if err != nil {
		return nil, toStatus(ctx, s.log, "issue code", err)
	}
	return &authv1.IssueCodeResponse{Email: out.Email, Code: out.Code}, nil
}

// VerifyCode completes registration and logs the new identity in.
func (s *Server) VerifyCode(ctx context.Context, req *authv1.VerifyCodeRequest) (*authv1.LoginResponse, error) {
	if req.Email == "" || req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/code")
	}
	res, err := s.codes.VerifyCode(ctx, convert.FromVerifyCodeRequest(req))
	if err != nil {
		return nil, toStatus(ctx, s.log, "verify code", err)
	}
	return convert.ToLoginResponse(res), nil
}

// GetIdentityBySlug resolves a public slug id.
func (s *Server) GetIdentityBySlug(ctx context.Context, req *authv1.GetIdentityBySlugRequest) (*authv1.GetIdentityBySlugResponse, error) {
	sum, err := s.auth.IdentityBySlug(ctx, req.Slug)
	if err != nil {
		return nil, toStatus(ctx, s.log, "identity by slug", err)
	}
	return &authv1.GetIdentityBySlugResponse{Identity: convert.ToWireIdentity(sum)}, nil
}

// --- Sessions ---

// RotateToken exchanges a refresh token. The bearer token is not required since it
// has usually expired by the time a client rotates.
func (s *Server) RotateToken(ctx context.Context, req *authv1.RotateTokenRequest) (*authv1.RotateTokenResponse, error) {
	identityID, err := convert.ParseID("identity_id", req.IdentityID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sessionID, err := convert.ParseID("session_id", req.SessionID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "empty refresh_token")
	}
	res, err := s.sessions.Rotate(ctx, identityID, sessionID, req.RefreshToken)
	if err != nil {
		return nil, toStatus(ctx, s.log, "rotate", err)
	}
	return convert.ToRotateResponse(res), nil
}

// Logout ends a session and blacklists the presented bearer token.
func (s *Server) Logout(ctx context.Context, req *authv1.LogoutRequest) (*authv1.LogoutResponse, error) {
	identityID, err := authorize(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}
	bearer, _ := BearerFromCtx(ctx)
	sessionID, err := convert.ParseID("session_id", req.SessionID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.sessions.Logout(ctx, identityID, sessionID, bearer); err != nil {
		return nil, toStatus(ctx, s.log, "logout", err)
	}
	return &authv1.LogoutResponse{Success: true, Message: "logged out"}, nil
}

// ListSessions returns the caller's session ids.
func (s *Server) ListSessions(ctx context.Context, req *authv1.ListSessionsRequest) (*authv1.ListSessionsResponse, error) {
	identityID, err := authorize(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}
	ids, err := s.sessions.List(ctx, identityID)
	if err != nil {
		return nil, toStatus(ctx, s.log, "list sessions", err)
	}
	return &authv1.ListSessionsResponse{SessionIDs: convert.ToSessionIDs(ids)}, nil
}

// RevokeAll ends every session of the caller.
func (s *Server) RevokeAll(ctx context.Context, req *authv1.RevokeAllRequest) (*authv1.RevokeAllResponse, error) {
	identityID, err := authorize(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}
	n, err := s.sessions.RevokeAll(ctx, identityID)
	if err != nil {
		return nil, toStatus(ctx, s.log, "revoke all", err)
	}
	return &authv1.RevokeAllResponse{Revoked: n}, nil
}

// authorize returns the identity authenticated by AuthUnary. A non-empty requested
// identity must equal it.
func authorize(ctx context.Context, requested string) (uuid.UUID, error) {
	id, ok := IdentityIDFromCtx(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no auth")
	}
	if requested != "" && requested != id.String() {
		return uuid.Nil, status.Error(codes.PermissionDenied, "identity does not match token")
	}
	return id, nil
}
